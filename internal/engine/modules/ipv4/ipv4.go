// Package ipv4 implements a minimal IPv4 header collaborator: enough of
// RFC 791 to locate the transport payload and publish source/destination
// addresses, nothing more (no fragmentation reassembly, no option parsing
// beyond skipping them).
package ipv4

import (
	"github.com/mizuhashi/packetflow/internal/engine/moduleregistry"
	"github.com/mizuhashi/packetflow/internal/engine/payload"
	"github.com/mizuhashi/packetflow/internal/engine/property"
)

const minHeaderSize = 20

const protoTCP = 6

// Module parses an IPv4 header and dispatches by protocol number.
type Module struct {
	tcpID moduleregistry.ModuleID

	pVersionIHL, pTTL, pProtocol, pSrcAddr, pDstAddr *moduleregistry.ParamDef
}

// New registers the ipv4 module's parameters. tcpID is the id the caller
// registered the tcp module under; pass moduleregistry.NONE to leave
// protocol 6 undecoded.
func New(reg *moduleregistry.Registry, tcpID moduleregistry.ModuleID) *Module {
	return &Module{
		tcpID:       tcpID,
		pVersionIHL: reg.DefineParam("ip_version_ihl"),
		pTTL:        reg.DefineParam("ip_ttl"),
		pProtocol:   reg.DefineParam("ip_protocol"),
		pSrcAddr:    reg.DefineParam("ip_src"),
		pDstAddr:    reg.DefineParam("ip_dst"),
	}
}

// Decode implements moduleregistry.Module.
func (m *Module) Decode(pd *payload.Payload, prop *property.Property) moduleregistry.ModuleID {
	hdr := pd.Retain(minHeaderSize)
	if hdr == nil {
		return moduleregistry.NONE
	}

	ihl := int(hdr[0]&0x0f) * 4
	protocol := hdr[9]
	srcAddr := hdr[12:16]
	dstAddr := hdr[16:20]

	prop.RetainValue(m.pVersionIHL.ID).Set(hdr[0:1])
	prop.RetainValue(m.pTTL.ID).Set(hdr[8:9])
	prop.RetainValue(m.pProtocol.ID).Set(hdr[9:10])
	prop.RetainValue(m.pSrcAddr.ID).Set(srcAddr)
	prop.RetainValue(m.pDstAddr.ID).Set(dstAddr)

	prop.SetSrcAddr(srcAddr)
	prop.SetDstAddr(dstAddr)

	if extra := ihl - minHeaderSize; extra > 0 {
		if pd.Retain(extra) == nil {
			return moduleregistry.NONE
		}
	}

	if protocol != protoTCP {
		return moduleregistry.NONE
	}
	return m.tcpID
}
