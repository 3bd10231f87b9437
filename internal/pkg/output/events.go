package output

import (
	"fmt"
	"net"
	"os"

	"github.com/mizuhashi/packetflow/internal/engine/modules/tcp"
	"github.com/mizuhashi/packetflow/internal/engine/property"
)

// FlowEvent is the JSON-serializable shape written to stdout for every TCP
// flow-tracker event.
type FlowEvent struct {
	Event     string `json:"event"`
	SessionID uint64 `json:"session_id"`
	SrcAddr   string `json:"src_addr"`
	DstAddr   string `json:"dst_addr"`
	SrcPort   uint16 `json:"src_port"`
	DstPort   uint16 `json:"dst_port"`
	RTT3whUs  uint32 `json:"rtt_3wh_us,omitempty"`
	TxServer  uint64 `json:"tx_server,omitempty"`
	TxClient  uint64 `json:"tx_client,omitempty"`
}

// WriteFlowEvent formats one flow-tracker event and writes it to stdout as
// a single JSON line.
func WriteFlowEvent(name string, mod *tcp.Module, prop *property.Property) {
	ev := FlowEvent{
		Event:     name,
		SessionID: mod.SessionID(prop),
		SrcAddr:   formatAddr(prop.SrcAddr()),
		DstAddr:   formatAddr(prop.DstAddr()),
		SrcPort:   mod.SrcPort(prop),
		DstPort:   mod.DstPort(prop),
	}

	switch name {
	case "established":
		ev.RTT3whUs = mod.RTT3wh(prop)
	case "closed":
		ev.TxServer = mod.TxServer(prop)
		ev.TxClient = mod.TxClient(prop)
	}

	// Always compact: this is a line-delimited event stream, not a
	// pretty-printed document, regardless of whether stdout is a TTY.
	b, err := MarshalJSONPretty(ev, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, "packetflow: failed to marshal flow event:", err)
		return
	}
	fmt.Println(string(b))
}

func formatAddr(b []byte) string {
	if len(b) == 4 || len(b) == 16 {
		return net.IP(b).String()
	}
	return ""
}
