// Package packet defines the record type that flows through the decode
// channel. It is deliberately tiny and dependency-free so both the channel
// and property packages can depend on it without a cycle.
package packet

import "time"

// Packet is a captured frame owned by the channel while queued and by the
// decode worker while being processed. Slots are reused across the
// producer/consumer handoff rather than reallocated per packet.
type Packet struct {
	Data      []byte
	CapLen    int
	WireLen   int
	Timestamp time.Time
}

// Reset clears a reused slot before a producer fills it with a new frame.
func (p *Packet) Reset() {
	p.Data = p.Data[:0]
	p.CapLen = 0
	p.WireLen = 0
	p.Timestamp = time.Time{}
}
