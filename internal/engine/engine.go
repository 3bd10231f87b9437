// Package engine wires the decode pipeline together. The source this was
// ported from self-registers each protocol module at static-init time via
// an INIT_MODULE macro; Go has no static-init hook with that shape, so
// wiring is an explicit call graph built once at startup instead.
package engine

import (
	"github.com/mizuhashi/packetflow/internal/engine/channel"
	"github.com/mizuhashi/packetflow/internal/engine/handlers"
	"github.com/mizuhashi/packetflow/internal/engine/kernel"
	"github.com/mizuhashi/packetflow/internal/engine/moduleregistry"
	"github.com/mizuhashi/packetflow/internal/engine/modules/ipv4"
	"github.com/mizuhashi/packetflow/internal/engine/modules/ipv6"
	"github.com/mizuhashi/packetflow/internal/engine/modules/linklayer"
	"github.com/mizuhashi/packetflow/internal/engine/modules/tcp"
)

// Engine bundles the wired pipeline pieces a capture producer and an
// event-handling consumer both need.
type Engine struct {
	Channel  *channel.Channel
	Kernel   *kernel.Kernel
	Registry *moduleregistry.Registry
	TCP      *tcp.Module
}

// New builds a Registry wired as linklayer -> {ipv4, ipv6} -> tcp (the
// modules are registered tcp first, so each one can be handed the id of
// the module it dispatches to), a Channel sized to channelCapacity, and a
// Kernel rooted at the linklayer module. sessionTTL, timeWheelBuckets, and
// maxSessions configure the TCP module's session table; see tcp.New.
func New(channelCapacity, sessionTTL, timeWheelBuckets, maxSessions int) *Engine {
	reg := moduleregistry.New()

	tcpModule := tcp.New(reg, sessionTTL, timeWheelBuckets, maxSessions)
	tcpID := reg.Register("tcp", tcpModule)

	ipv4Module := ipv4.New(reg, tcpID)
	ipv4ID := reg.Register("ipv4", ipv4Module)

	ipv6Module := ipv6.New(reg, tcpID)
	ipv6ID := reg.Register("ipv6", ipv6Module)

	linkModule := linklayer.New(reg, ipv4ID, ipv6ID)
	rootID := reg.Register("linklayer", linkModule)

	ch := channel.New(channelCapacity)
	hdlrs := handlers.New(reg)
	k := kernel.New(ch, reg, hdlrs, rootID)

	return &Engine{
		Channel:  ch,
		Kernel:   k,
		Registry: reg,
		TCP:      tcpModule,
	}
}

// On registers cb for eventName; see handlers.Registry.On.
func (e *Engine) On(eventName string, cb handlers.Callback) handlers.HandlerID {
	return e.Kernel.On(eventName, cb)
}
