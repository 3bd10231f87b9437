// Package property implements the per-packet scratchpad that protocol
// modules write attributes and events into as they decode a frame. A single
// Property instance is owned by the decode worker and reset (never
// reallocated) between packets.
package property

import (
	"time"

	"github.com/mizuhashi/packetflow/internal/engine/packet"
)

// ParamID is an opaque, stable index into a Property's value slots,
// issued by the module registry at setup time.
type ParamID int

// EventID is an opaque, stable index into a Property's event stream,
// issued by the module registry at setup time.
type EventID int

// NoEvent is returned by lookups for an event name the registry does not
// know about.
const NoEvent EventID = -1

// Event is one entry in a packet's ordered event list.
type Event struct {
	ID EventID
}

// Property is per-packet state: the packet timestamp, source/destination
// endpoint, an ordered event list, and a param_id -> Value map realized as
// a slice indexed by ParamID so no per-packet allocation is needed.
type Property struct {
	ts      time.Time
	srcAddr []byte
	dstAddr []byte
	srcPort uint16
	dstPort uint16

	values []Value
	events []Event
}

// New allocates a Property with room for paramCount value slots. paramCount
// is fixed once the module registry has finished registering modules.
func New(paramCount int) *Property {
	return &Property{
		values: make([]Value, paramCount),
		events: make([]Event, 0, 8),
	}
}

// Init resets all per-packet state ahead of decoding pkt. It never
// reallocates the values slice or the events backing array.
func (p *Property) Init(pkt *packet.Packet) {
	p.ts = pkt.Timestamp
	p.srcAddr = nil
	p.dstAddr = nil
	p.srcPort = 0
	p.dstPort = 0
	p.events = p.events[:0]
	for i := range p.values {
		p.values[i].reset()
	}
}

// Ts returns the packet timestamp in seconds.
func (p *Property) Ts() int64 {
	return p.ts.Unix()
}

// Tv returns the packet timestamp split into seconds and microseconds.
func (p *Property) Tv() (sec int64, usec int64) {
	return p.ts.Unix(), int64(p.ts.Nanosecond() / 1000)
}

// Timestamp returns the packet timestamp as a time.Time.
func (p *Property) Timestamp() time.Time {
	return p.ts
}

// SrcAddr returns the source address bytes set by a network-layer module.
func (p *Property) SrcAddr() []byte { return p.srcAddr }

// DstAddr returns the destination address bytes set by a network-layer module.
func (p *Property) DstAddr() []byte { return p.dstAddr }

// SetSrcAddr is called by network-layer modules (IPv4/IPv6) to publish the
// source address for transport-layer modules and the flow tracker.
func (p *Property) SetSrcAddr(b []byte) { p.srcAddr = b }

// SetDstAddr is called by network-layer modules to publish the destination
// address.
func (p *Property) SetDstAddr(b []byte) { p.dstAddr = b }

// SrcPort returns the transport-layer source port.
func (p *Property) SrcPort() uint16 { return p.srcPort }

// DstPort returns the transport-layer destination port.
func (p *Property) DstPort() uint16 { return p.dstPort }

// SetSrcPort is called by a transport-layer module to publish the source port.
func (p *Property) SetSrcPort(port uint16) { p.srcPort = port }

// SetDstPort is called by a transport-layer module to publish the
// destination port.
func (p *Property) SetDstPort(port uint16) { p.dstPort = port }

// RetainValue returns the value slot for id, lazily "allocated" in the
// sense that it starts zeroed on every packet reset; callers write into it
// via Set or Cpy.
func (p *Property) RetainValue(id ParamID) *Value {
	return &p.values[id]
}

// PushEvent appends an event to the packet's ordered event list.
func (p *Property) PushEvent(id EventID) {
	p.events = append(p.events, Event{ID: id})
}

// Events returns the packet's event list in push order.
func (p *Property) Events() []Event {
	return p.events
}
