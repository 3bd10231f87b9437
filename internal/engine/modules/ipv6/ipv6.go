// Package ipv6 implements a minimal IPv6 header collaborator: the fixed
// 40-byte header only, no extension header walking. A packet using
// extension headers before TCP is left undecoded past the network layer,
// matching the collaborator's deliberately narrow scope.
package ipv6

import (
	"github.com/mizuhashi/packetflow/internal/engine/moduleregistry"
	"github.com/mizuhashi/packetflow/internal/engine/payload"
	"github.com/mizuhashi/packetflow/internal/engine/property"
)

const headerSize = 40

const nextHeaderTCP = 6

// Module parses a fixed IPv6 header and dispatches by next-header value.
type Module struct {
	tcpID moduleregistry.ModuleID

	pTrafficClass, pNextHeader, pHopLimit, pSrcAddr, pDstAddr *moduleregistry.ParamDef
}

// New registers the ipv6 module's parameters. tcpID is the id the caller
// registered the tcp module under; pass moduleregistry.NONE to leave
// next-header 6 undecoded.
func New(reg *moduleregistry.Registry, tcpID moduleregistry.ModuleID) *Module {
	return &Module{
		tcpID:         tcpID,
		pTrafficClass: reg.DefineParam("ip6_traffic_class"),
		pNextHeader:   reg.DefineParam("ip6_next_header"),
		pHopLimit:     reg.DefineParam("ip6_hop_limit"),
		pSrcAddr:      reg.DefineParam("ip6_src"),
		pDstAddr:      reg.DefineParam("ip6_dst"),
	}
}

// Decode implements moduleregistry.Module.
func (m *Module) Decode(pd *payload.Payload, prop *property.Property) moduleregistry.ModuleID {
	hdr := pd.Retain(headerSize)
	if hdr == nil {
		return moduleregistry.NONE
	}

	nextHeader := hdr[6]
	srcAddr := hdr[8:24]
	dstAddr := hdr[24:40]

	prop.RetainValue(m.pTrafficClass.ID).Set(hdr[0:2])
	prop.RetainValue(m.pNextHeader.ID).Set(hdr[6:7])
	prop.RetainValue(m.pHopLimit.ID).Set(hdr[7:8])
	prop.RetainValue(m.pSrcAddr.ID).Set(srcAddr)
	prop.RetainValue(m.pDstAddr.ID).Set(dstAddr)

	prop.SetSrcAddr(srcAddr)
	prop.SetDstAddr(dstAddr)

	if nextHeader != nextHeaderTCP {
		return moduleregistry.NONE
	}
	return m.tcpID
}
