// Package channel implements the bounded producer/consumer handoff of
// packet records that feeds the decode kernel. Unlike a bare Go channel it
// exposes an explicit slot pool (retain/release) so packet buffers are
// reused across the capture producer and the decode worker, and an
// in-band close so the consumer can drain remaining packets before
// exiting.
package channel

import (
	"sync"

	"github.com/mizuhashi/packetflow/internal/engine/packet"
)

// Channel is a bounded multi-producer/single-consumer FIFO of *packet.Packet
// slots. Ordering is FIFO: producers that race to Push serialize under the
// mutex, and the consumer observes insertion order.
type Channel struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	queue    []*packet.Packet
	free     []*packet.Packet
	capacity int
	inFlight int
	closed   bool
}

// New returns a Channel that allows up to capacity packets to be in flight
// (retained but not yet released) at once.
func New(capacity int) *Channel {
	if capacity <= 0 {
		capacity = 1
	}
	c := &Channel{capacity: capacity}
	c.notEmpty = sync.NewCond(&c.mu)
	c.notFull = sync.NewCond(&c.mu)
	return c
}

// Retain obtains a writable packet slot for a producer to fill, blocking
// while the channel is at capacity. It never returns nil.
func (c *Channel) Retain() *packet.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.inFlight >= c.capacity && !c.closed {
		c.notFull.Wait()
	}

	c.inFlight++

	var p *packet.Packet
	if n := len(c.free); n > 0 {
		p = c.free[n-1]
		c.free = c.free[:n-1]
		p.Reset()
	} else {
		p = &packet.Packet{}
	}
	return p
}

// Push enqueues a filled slot and wakes any blocked consumer.
func (c *Channel) Push(p *packet.Packet) {
	c.mu.Lock()
	c.queue = append(c.queue, p)
	c.mu.Unlock()
	c.notEmpty.Signal()
}

// Pull dequeues the next slot in FIFO order, blocking while the channel is
// empty and open. It returns nil iff the channel is closed and drained.
func (c *Channel) Pull() *packet.Packet {
	c.mu.Lock()
	defer c.mu.Unlock()

	for len(c.queue) == 0 && !c.closed {
		c.notEmpty.Wait()
	}

	if len(c.queue) == 0 {
		return nil
	}

	p := c.queue[0]
	c.queue = c.queue[1:]
	return p
}

// Release returns a consumed slot to the free pool, decrementing the
// in-flight count and waking any producer blocked in Retain.
func (c *Channel) Release(p *packet.Packet) {
	c.mu.Lock()
	c.inFlight--
	c.free = append(c.free, p)
	c.mu.Unlock()
	c.notFull.Signal()
}

// Close marks end-of-stream. After Close, Pull drains any queued packets
// and then returns nil. Close also wakes producers blocked in Retain so
// they can observe the shutdown instead of hanging forever.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.notEmpty.Broadcast()
	c.notFull.Broadcast()
}
