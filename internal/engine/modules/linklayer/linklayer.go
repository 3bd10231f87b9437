// Package linklayer implements a minimal Ethernet II framing collaborator:
// it strips the 14-byte link header and hands off to whichever
// network-layer module the frame's EtherType names. It is deliberately
// thin — no VLAN tagging, no other link types — since the decode engine's
// contract begins at the network layer.
package linklayer

import (
	"encoding/binary"

	"github.com/mizuhashi/packetflow/internal/engine/moduleregistry"
	"github.com/mizuhashi/packetflow/internal/engine/payload"
	"github.com/mizuhashi/packetflow/internal/engine/property"
)

const headerSize = 14

const (
	etherTypeIPv4 = 0x0800
	etherTypeIPv6 = 0x86DD
)

// Module parses an Ethernet II header and dispatches by EtherType.
type Module struct {
	ipv4ID moduleregistry.ModuleID
	ipv6ID moduleregistry.ModuleID

	pDstMAC, pSrcMAC, pEtherType *moduleregistry.ParamDef
}

// New registers the link-layer module's parameters. ipv4ID and ipv6ID must
// be the ids the caller registered the ipv4 and ipv6 modules under; pass
// moduleregistry.NONE for either to leave that EtherType undecoded.
func New(reg *moduleregistry.Registry, ipv4ID, ipv6ID moduleregistry.ModuleID) *Module {
	return &Module{
		ipv4ID:     ipv4ID,
		ipv6ID:     ipv6ID,
		pDstMAC:    reg.DefineParam("eth_dst"),
		pSrcMAC:    reg.DefineParam("eth_src"),
		pEtherType: reg.DefineParam("ethertype"),
	}
}

// Decode implements moduleregistry.Module.
func (m *Module) Decode(pd *payload.Payload, prop *property.Property) moduleregistry.ModuleID {
	hdr := pd.Retain(headerSize)
	if hdr == nil {
		return moduleregistry.NONE
	}

	prop.RetainValue(m.pDstMAC.ID).Set(hdr[0:6])
	prop.RetainValue(m.pSrcMAC.ID).Set(hdr[6:12])
	prop.RetainValue(m.pEtherType.ID).Set(hdr[12:14])

	switch binary.BigEndian.Uint16(hdr[12:14]) {
	case etherTypeIPv4:
		return m.ipv4ID
	case etherTypeIPv6:
		return m.ipv6ID
	default:
		return moduleregistry.NONE
	}
}
