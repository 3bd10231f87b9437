// Package capture drives one or more pcap interfaces and feeds every
// captured frame into the decode engine's channel. It is the boundary
// between gopacket's link/IP capture machinery and the hand-rolled decode
// pipeline: capture.Init owns nothing about protocol decoding, it only
// copies bytes into channel-owned packet slots.
package capture

import (
	"sync"

	"github.com/google/gopacket"

	"github.com/mizuhashi/packetflow/internal/engine/channel"
	"github.com/mizuhashi/packetflow/internal/pkg/capture/pcaptypes"
	"github.com/mizuhashi/packetflow/internal/pkg/logger"
)

// Init opens every interface in ifaces, applies filter as a BPF program,
// and pushes captured frames into ch until every interface's packet source
// is exhausted, at which point it closes ch. It returns once all capture
// goroutines have exited.
func Init(ifaces []pcaptypes.PcapInterface, filter string, ch *channel.Channel) {
	var wg sync.WaitGroup
	for _, iface := range ifaces {
		wg.Add(1)
		go func(pif pcaptypes.PcapInterface) {
			defer wg.Done()
			captureFromInterface(pif, filter, ch)
		}(iface)
	}
	wg.Wait()
	ch.Close()
}

func captureFromInterface(iface pcaptypes.PcapInterface, filter string, ch *channel.Channel) {
	if err := iface.SetHandle(); err != nil {
		logger.Error("failed to open capture handle", "interface", iface.Name(), "error", err)
		return
	}

	handle, err := iface.Handle()
	if err != nil {
		logger.Error("capture handle unavailable", "interface", iface.Name(), "error", err)
		return
	}
	defer handle.Close()

	if filter != "" {
		if err := handle.SetBPFFilter(filter); err != nil {
			logger.Error("failed to set BPF filter", "interface", iface.Name(), "filter", filter, "error", err)
			return
		}
	}

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	for pkt := range source.Packets() {
		slot := ch.Retain()

		data := pkt.Data()
		slot.Data = append(slot.Data[:0], data...)
		slot.CapLen = len(data)

		meta := pkt.Metadata()
		slot.WireLen = meta.Length
		slot.Timestamp = meta.Timestamp

		ch.Push(slot)
	}
}
