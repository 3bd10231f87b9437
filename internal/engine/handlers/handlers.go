// Package handlers implements the event-handler dispatch that fires
// user-registered callbacks with per-packet ordering guarantees. It maps
// event names to callbacks and supports registration and cancellation
// concurrently with the worker's dispatch loop.
//
// Open question resolved: the source tombstones handler slots in place so
// an in-flight dispatch loop is never invalidated by a concurrent Clear.
// This port uses an equivalent, race-free copy-on-write vector per event
// instead of a mutex-guarded tombstoned slice: On/Clear build a new slice
// and atomically swap it in, while Dispatch loads one snapshot pointer per
// event at the start of its scan. This gives snapshot semantics: a dispatch
// that is already iterating an event's handlers when Clear runs still
// invokes the cleared handler for that firing; only subsequent firings
// skip it.
package handlers

import (
	"sync"
	"sync/atomic"

	"github.com/mizuhashi/packetflow/internal/engine/moduleregistry"
	"github.com/mizuhashi/packetflow/internal/engine/property"
)

// Callback is invoked once per matching event, on the decode worker's
// goroutine.
type Callback func(*property.Property)

// HandlerID identifies a registered callback for later cancellation.
type HandlerID int

// NoHandler is returned by On when the event name is unknown.
const NoHandler HandlerID = 0

type entry struct {
	id    HandlerID
	event property.EventID
	cb    Callback
}

// Registry maps event names to ordered lists of callbacks.
type Registry struct {
	reg *moduleregistry.Registry

	mu       sync.Mutex
	nextID   HandlerID
	byID     map[HandlerID]entry
	perEvent []atomic.Pointer[[]entry]
}

// New returns a registry sized for reg's interned events.
func New(reg *moduleregistry.Registry) *Registry {
	return &Registry{
		reg:      reg,
		byID:     make(map[HandlerID]entry),
		perEvent: make([]atomic.Pointer[[]entry], reg.EventCount()),
	}
}

// On resolves eventName to an event id, allocates a monotonic handler id,
// and appends cb to that event's handler list. It returns NoHandler if the
// event name is unknown.
func (r *Registry) On(eventName string, cb Callback) HandlerID {
	eid := r.reg.LookupEvent(eventName)
	if eid == property.NoEvent {
		return NoHandler
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	e := entry{id: id, event: eid, cb: cb}
	r.byID[id] = e

	old := r.perEvent[eid].Load()
	next := make([]entry, 0, len(deref(old))+1)
	next = append(next, deref(old)...)
	next = append(next, e)
	r.perEvent[eid].Store(&next)

	return id
}

// Clear removes the handler registered under id. It returns false if id is
// unknown. A dispatch already in progress for that handler's event may
// still invoke it once more; see the package doc comment.
func (r *Registry) Clear(id HandlerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[id]
	if !ok {
		return false
	}
	delete(r.byID, id)

	old := deref(r.perEvent[e.event].Load())
	next := make([]entry, 0, len(old))
	for _, x := range old {
		if x.id != id {
			next = append(next, x)
		}
	}
	r.perEvent[e.event].Store(&next)

	return true
}

// Dispatch invokes, for each event pushed into prop in push order, every
// registered handler for that event in registration order.
func (r *Registry) Dispatch(prop *property.Property) {
	for _, ev := range prop.Events() {
		if int(ev.ID) < 0 || int(ev.ID) >= len(r.perEvent) {
			continue
		}
		snapshot := deref(r.perEvent[ev.ID].Load())
		for _, e := range snapshot {
			e.cb(prop)
		}
	}
}

func deref(p *[]entry) []entry {
	if p == nil {
		return nil
	}
	return *p
}
