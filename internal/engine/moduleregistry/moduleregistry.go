// Package moduleregistry threads Payload -> Property through a chain of
// protocol modules. In the source this repo was distilled from, modules
// self-register through a macro at static-init time; Go has no equivalent,
// so registration is an explicit call the CLI (or a test) makes once
// during setup, before the decode kernel starts.
package moduleregistry

import (
	"github.com/mizuhashi/packetflow/internal/engine/payload"
	"github.com/mizuhashi/packetflow/internal/engine/property"
)

// ModuleID identifies a registered protocol module. NONE stops the decode
// chain.
type ModuleID int

// NONE stops the decode chain: a module returns it when it has no next
// module to hand off to, or when it fails to decode its own layer.
const NONE ModuleID = -1

// ParamDef is an opaque handle to a registered per-packet attribute.
type ParamDef struct {
	ID   property.ParamID
	Name string
}

// EventDef is an opaque handle to a registered event.
type EventDef struct {
	ID   property.EventID
	Name string
}

// Module is the contract every protocol decoder implements: consume bytes
// from pd, write attributes and events to prop, and return the id of the
// next module (or NONE).
type Module interface {
	Decode(pd *payload.Payload, prop *property.Property) ModuleID
}

// Registry is the ordered table of protocol decoders keyed by ModuleID,
// plus parameter and event name interning.
type Registry struct {
	modules []Module
	names   map[string]ModuleID

	params    map[string]*ParamDef
	paramList []*ParamDef

	events    map[string]*EventDef
	eventList []*EventDef
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		names:  make(map[string]ModuleID),
		params: make(map[string]*ParamDef),
		events: make(map[string]*EventDef),
	}
}

// Register adds a module under name and returns its id.
func (r *Registry) Register(name string, m Module) ModuleID {
	id := ModuleID(len(r.modules))
	r.modules = append(r.modules, m)
	r.names[name] = id
	return id
}

// LookupModule resolves a module name to its id, or NONE if unknown.
func (r *Registry) LookupModule(name string) ModuleID {
	id, ok := r.names[name]
	if !ok {
		return NONE
	}
	return id
}

// Module returns the module registered under id, or nil if id is out of
// range.
func (r *Registry) Module(id ModuleID) Module {
	if id < 0 || int(id) >= len(r.modules) {
		return nil
	}
	return r.modules[id]
}

// DefineParam interns a parameter name and returns its handle.
func (r *Registry) DefineParam(name string) *ParamDef {
	if pd, ok := r.params[name]; ok {
		return pd
	}
	pd := &ParamDef{ID: property.ParamID(len(r.paramList)), Name: name}
	r.paramList = append(r.paramList, pd)
	r.params[name] = pd
	return pd
}

// DefineEvent interns an event name and returns its handle.
func (r *Registry) DefineEvent(name string) *EventDef {
	if ed, ok := r.events[name]; ok {
		return ed
	}
	ed := &EventDef{ID: property.EventID(len(r.eventList)), Name: name}
	r.eventList = append(r.eventList, ed)
	r.events[name] = ed
	return ed
}

// LookupEvent resolves an event name to its id, or property.NoEvent if
// unknown.
func (r *Registry) LookupEvent(name string) property.EventID {
	ed, ok := r.events[name]
	if !ok {
		return property.NoEvent
	}
	return ed.ID
}

// ParamCount returns the number of interned parameters, used to size a
// Property's value slice.
func (r *Registry) ParamCount() int {
	return len(r.paramList)
}

// EventCount returns the number of interned events, used to size a
// HandlerRegistry's per-event table.
func (r *Registry) EventCount() int {
	return len(r.eventList)
}
