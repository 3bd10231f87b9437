// Package pcaptypes abstracts live and offline libpcap sources behind a
// single interface so the capture package does not need to branch on
// capture mode.
package pcaptypes

import (
	"os"

	"github.com/google/gopacket/pcap"
)

// MaxPcapSnapshotLen is the snapshot length requested from libpcap; large
// enough to capture a full-size Ethernet frame without truncation.
const MaxPcapSnapshotLen = 65535

// PcapInterface is a capture source that can be activated and then handed
// off to a gopacket.PacketSource.
type PcapInterface interface {
	SetHandle() error
	Handle() (*pcap.Handle, error)
	Name() string
}

// CreateLiveInterface builds a PcapInterface bound to a live network device.
func CreateLiveInterface(device string) PcapInterface {
	return &liveInterface{Device: device}
}

// CreateOfflineInterface builds a PcapInterface that replays a pcap file.
func CreateOfflineInterface(file *os.File) PcapInterface {
	return &offlineInterface{file: file}
}
