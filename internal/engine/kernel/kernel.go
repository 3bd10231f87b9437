// Package kernel runs the single decode worker: pull a packet, reset the
// per-packet scratchpad, walk the module chain, and dispatch the events the
// chain produced.
package kernel

import (
	"sync/atomic"

	"github.com/mizuhashi/packetflow/internal/engine/channel"
	"github.com/mizuhashi/packetflow/internal/engine/handlers"
	"github.com/mizuhashi/packetflow/internal/engine/moduleregistry"
	"github.com/mizuhashi/packetflow/internal/engine/payload"
	"github.com/mizuhashi/packetflow/internal/engine/property"
)

// Kernel owns the decode worker's state: the channel it pulls packets
// from, the module registry, and the handler registry it dispatches
// through.
type Kernel struct {
	ch       *channel.Channel
	registry *moduleregistry.Registry
	handlers *handlers.Registry
	root     moduleregistry.ModuleID

	recvPkt  uint64
	recvSize uint64
}

// New builds a Kernel. root is the module id decoding starts at for every
// packet (typically the link-layer module).
func New(ch *channel.Channel, registry *moduleregistry.Registry, hdlrs *handlers.Registry, root moduleregistry.ModuleID) *Kernel {
	return &Kernel{ch: ch, registry: registry, handlers: hdlrs, root: root}
}

// On registers cb for eventName; see handlers.Registry.On.
func (k *Kernel) On(eventName string, cb handlers.Callback) handlers.HandlerID {
	return k.handlers.On(eventName, cb)
}

// Clear cancels a previously registered handler; see handlers.Registry.Clear.
func (k *Kernel) Clear(id handlers.HandlerID) bool {
	return k.handlers.Clear(id)
}

// RecvPkt returns the number of packets pulled so far.
func (k *Kernel) RecvPkt() uint64 { return atomic.LoadUint64(&k.recvPkt) }

// RecvSize returns the cumulative captured bytes of packets pulled so far.
func (k *Kernel) RecvSize() uint64 { return atomic.LoadUint64(&k.recvSize) }

// Run is the worker entry point. It blocks until the channel is closed and
// drained, decoding and dispatching each packet in FIFO order. There is no
// mid-packet cancellation: once pulled, a packet is decoded to completion.
func (k *Kernel) Run() {
	pd := payload.New()
	prop := property.New(k.registry.ParamCount())

	for {
		pkt := k.ch.Pull()
		if pkt == nil {
			return
		}

		k.recvPkt++
		k.recvSize += uint64(pkt.CapLen)

		prop.Init(pkt)
		pd.Reset(pkt.Data[:pkt.CapLen])

		cur := k.root
		for cur != moduleregistry.NONE {
			mod := k.registry.Module(cur)
			if mod == nil {
				break
			}
			cur = mod.Decode(pd, prop)
		}

		k.handlers.Dispatch(prop)
		k.ch.Release(pkt)
	}
}
