// Package tcp implements the TCP flow tracker: a per-flow LRU-indexed
// session store with time-driven expiry, a three-way-handshake state
// machine, sender/receiver stream tracking, out-of-order segment parking
// and reassembly, and tx-byte accounting. It is registered into the
// decode pipeline as a moduleregistry.Module.
package tcp

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/mizuhashi/packetflow/internal/engine/lru"
	"github.com/mizuhashi/packetflow/internal/engine/moduleregistry"
	"github.com/mizuhashi/packetflow/internal/engine/payload"
	"github.com/mizuhashi/packetflow/internal/engine/property"
)

// Flag bits, masked to network byte order per the 20-byte TCP header.
const (
	FlagFIN uint8 = 0x01
	FlagSYN uint8 = 0x02
	FlagRST uint8 = 0x04
	FlagPSH uint8 = 0x08
	FlagACK uint8 = 0x10
	FlagURG uint8 = 0x20
	FlagECE uint8 = 0x40
	FlagCWR uint8 = 0x80
)

// stateMask restricts the state machine's view of the flag byte to the
// four bits the handshake/close transitions care about.
const stateMask = FlagFIN | FlagSYN | FlagRST | FlagACK

// Status is a Session's position in the three-way-handshake / close state
// machine. Transitions are monotonic; no transition ever goes backward.
type Status int

const (
	StatusNone Status = iota
	StatusSynSent
	StatusSynAckSent
	StatusEstablished
	StatusClosing
	StatusClosed
)

const (
	headerSize = 20
	// Defaults used when New is called with a non-positive override; the
	// same numbers the flow tracker always used before its knobs were
	// wired to configuration.
	defaultSessionTTL = 300 // seconds after a flow's session is created before it is evicted
	defaultTimeWheel  = 3600
	maxKeyBytes       = 0xffff
)

// Module is the TCP protocol decoder. It owns the flow tracker state
// (session table, synthetic clock) plus every param/event definition the
// TCP layer publishes on Property.
type Module struct {
	pSrcPort, pDstPort *moduleregistry.ParamDef
	pSeq, pAck         *moduleregistry.ParamDef
	pOffset, pFlags    *moduleregistry.ParamDef
	pWindow, pChksum   *moduleregistry.ParamDef
	pUrgptr            *moduleregistry.ParamDef

	pFlagFin, pFlagSyn, pFlagRst, pFlagPush *moduleregistry.ParamDef
	pFlagAck, pFlagUrg, pFlagEce, pFlagCwr  *moduleregistry.ParamDef

	pOptdata, pSegment, pData *moduleregistry.ParamDef
	pSsnID                    *moduleregistry.ParamDef
	pRTT3wh                   *moduleregistry.ParamDef
	pTxServer, pTxClient      *moduleregistry.ParamDef

	evNew, evEstablished, evClosed *moduleregistry.EventDef

	ssnTable   *lru.LruHash[*Session]
	sessionTTL int
	ssnCount   uint64
	currTs     int64
	initTs     bool
}

// New registers the TCP module's parameters and events against reg and
// returns it ready to be registered as a decode-chain module.
//
// sessionTTL is how many seconds after its creation a flow's session is
// evicted (later packets on the flow do not refresh it); timeWheelBuckets
// sizes the session table's expiry wheel (it must be greater than
// sessionTTL for that TTL to actually take effect); maxSessions bounds the
// number of live sessions the table holds at once. A non-positive
// sessionTTL or timeWheelBuckets falls back to the flow tracker's original
// fixed constant; a non-positive maxSessions leaves the table uncapped.
func New(reg *moduleregistry.Registry, sessionTTL, timeWheelBuckets, maxSessions int) *Module {
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	if timeWheelBuckets <= 0 {
		timeWheelBuckets = defaultTimeWheel
	}

	m := &Module{
		ssnTable:   lru.New[*Session](timeWheelBuckets, maxKeyBytes, maxSessions),
		sessionTTL: sessionTTL,
	}

	m.pSrcPort = reg.DefineParam("src_port")
	m.pDstPort = reg.DefineParam("dst_port")
	m.pSeq = reg.DefineParam("seq")
	m.pAck = reg.DefineParam("ack")
	m.pOffset = reg.DefineParam("offset")
	m.pFlags = reg.DefineParam("flags")
	m.pWindow = reg.DefineParam("window")
	m.pChksum = reg.DefineParam("chksum")
	m.pUrgptr = reg.DefineParam("urgptr")

	m.pFlagFin = reg.DefineParam("flag_fin")
	m.pFlagSyn = reg.DefineParam("flag_syn")
	m.pFlagRst = reg.DefineParam("flag_rst")
	m.pFlagPush = reg.DefineParam("flag_push")
	m.pFlagAck = reg.DefineParam("flag_ack")
	m.pFlagUrg = reg.DefineParam("flag_urg")
	m.pFlagEce = reg.DefineParam("flag_ece")
	m.pFlagCwr = reg.DefineParam("flag_cwr")

	m.pOptdata = reg.DefineParam("optdata")
	m.pSegment = reg.DefineParam("segment")
	m.pData = reg.DefineParam("data")
	m.pSsnID = reg.DefineParam("id")
	m.pRTT3wh = reg.DefineParam("rtt_3wh")
	m.pTxServer = reg.DefineParam("tx_server")
	m.pTxClient = reg.DefineParam("tx_client")

	m.evNew = reg.DefineEvent("new_session")
	m.evEstablished = reg.DefineEvent("established")
	m.evClosed = reg.DefineEvent("closed")

	return m
}

// Decode implements moduleregistry.Module. It parses the fixed 20-byte TCP
// header, options, and segment, then hands off to the flow tracker. TCP is
// always the end of the decode chain, so it always returns NONE.
func (m *Module) Decode(pd *payload.Payload, prop *property.Property) moduleregistry.ModuleID {
	hdr := pd.Retain(headerSize)
	if hdr == nil {
		return moduleregistry.NONE
	}

	srcPort := binary.BigEndian.Uint16(hdr[0:2])
	dstPort := binary.BigEndian.Uint16(hdr[2:4])
	seq := binary.BigEndian.Uint32(hdr[4:8])
	ack := binary.BigEndian.Uint32(hdr[8:12])
	offsetByte := hdr[12]
	flagsByte := hdr[13]
	window := binary.BigEndian.Uint16(hdr[14:16])

	prop.SetSrcPort(srcPort)
	prop.SetDstPort(dstPort)

	prop.RetainValue(m.pSrcPort.ID).Set(hdr[0:2])
	prop.RetainValue(m.pDstPort.ID).Set(hdr[2:4])
	prop.RetainValue(m.pSeq.ID).Set(hdr[4:8])
	prop.RetainValue(m.pAck.ID).Set(hdr[8:12])

	// offset_ top nibble counts 32-bit words; header length in bytes is
	// that nibble times 4, i.e. (offsetByte & 0xf0) >> 2.
	headerLen := (offsetByte & 0xf0) >> 2
	var offsetBuf [1]byte
	offsetBuf[0] = headerLen
	prop.RetainValue(m.pOffset.ID).Cpy(offsetBuf[:], property.BigEndian)

	prop.RetainValue(m.pFlags.ID).Set(hdr[13:14])
	prop.RetainValue(m.pWindow.ID).Set(hdr[14:16])
	prop.RetainValue(m.pChksum.ID).Set(hdr[16:18])
	prop.RetainValue(m.pUrgptr.ID).Set(hdr[18:20])

	setFlagValue(prop, m.pFlagFin, flagsByte, FlagFIN)
	setFlagValue(prop, m.pFlagSyn, flagsByte, FlagSYN)
	setFlagValue(prop, m.pFlagRst, flagsByte, FlagRST)
	setFlagValue(prop, m.pFlagPush, flagsByte, FlagPSH)
	setFlagValue(prop, m.pFlagAck, flagsByte, FlagACK)
	setFlagValue(prop, m.pFlagUrg, flagsByte, FlagURG)
	setFlagValue(prop, m.pFlagEce, flagsByte, FlagECE)
	setFlagValue(prop, m.pFlagCwr, flagsByte, FlagCWR)

	// Options truncation is checked after header fields are already
	// published on Property, matching the source this was ported from:
	// a short read here leaves partial header attributes visible.
	optLen := int(headerLen) - headerSize
	if optLen > 0 {
		opt := pd.Retain(optLen)
		if opt == nil {
			return moduleregistry.NONE
		}
		prop.RetainValue(m.pOptdata.ID).Set(opt)
	}

	var segData []byte
	if segLen := pd.Length(); segLen > 0 {
		segData = pd.Retain(segLen)
		prop.RetainValue(m.pSegment.ID).Set(segData)
	}

	m.stepClock(prop.Ts())
	m.reapExpired()

	maskedFlags := flagsByte & stateMask

	key := makeKey(prop.SrcAddr(), srcPort, prop.DstAddr(), dstPort)
	node := m.ssnTable.Get(key)

	var ssn *Session
	if node.IsNull() {
		m.ssnCount++
		ssn = newSession(prop, m, m.ssnCount)
		m.ssnTable.Put(m.sessionTTL, key, ssn)
		prop.PushEvent(m.evNew.ID)
	} else {
		ssn = node.Data()
	}

	var idBuf [8]byte
	binary.LittleEndian.PutUint64(idBuf[:], ssn.id)
	prop.RetainValue(m.pSsnID.ID).Cpy(idBuf[:], property.LittleEndian)

	ssn.decode(prop, maskedFlags, seq, ack, segData, window)

	return moduleregistry.NONE
}

func setFlagValue(prop *property.Property, pd *moduleregistry.ParamDef, flags, mask uint8) {
	var b [1]byte
	if flags&mask != 0 {
		b[0] = 1
	}
	prop.RetainValue(pd.ID).Cpy(b[:], property.BigEndian)
}

// SessionID reads the session id the current packet's flow was assigned.
func (m *Module) SessionID(prop *property.Property) uint64 {
	return prop.RetainValue(m.pSsnID.ID).Uint64()
}

// SrcPort reads the wire source port off the current packet.
func (m *Module) SrcPort(prop *property.Property) uint16 {
	return prop.RetainValue(m.pSrcPort.ID).Uint16()
}

// DstPort reads the wire destination port off the current packet.
func (m *Module) DstPort(prop *property.Property) uint16 {
	return prop.RetainValue(m.pDstPort.ID).Uint16()
}

// RTT3wh reads the three-way-handshake round-trip time, in microseconds,
// published when a session reaches StatusEstablished.
func (m *Module) RTT3wh(prop *property.Property) uint32 {
	return prop.RetainValue(m.pRTT3wh.ID).Uint32()
}

// TxServer reads the cumulative bytes the client has sent the server.
func (m *Module) TxServer(prop *property.Property) uint64 {
	return prop.RetainValue(m.pTxServer.ID).Uint64()
}

// TxClient reads the cumulative bytes the server has sent the client.
func (m *Module) TxClient(prop *property.Property) uint64 {
	return prop.RetainValue(m.pTxClient.ID).Uint64()
}

// stepClock advances the tracker's synthetic wall clock from packet
// timestamps. The very first packet latches the clock without stepping.
func (m *Module) stepClock(ts int64) {
	if m.currTs >= ts {
		return
	}
	diff := ts - m.currTs
	m.currTs = ts
	if !m.initTs {
		m.initTs = true
		return
	}
	m.ssnTable.Step(int(diff))
}

func (m *Module) reapExpired() {
	for m.ssnTable.HasExpired() {
		m.ssnTable.PopExpired()
	}
}

func makeKey(srcAddr []byte, srcPort uint16, dstAddr []byte, dstPort uint16) []byte {
	if len(srcAddr) != len(dstAddr) {
		panic("tcp: source and destination address lengths differ")
	}

	key := make([]byte, 0, 2*len(srcAddr)+4)
	cmp := bytes.Compare(srcAddr, dstAddr)
	if cmp > 0 || (cmp == 0 && srcPort > dstPort) {
		key = append(key, srcAddr...)
		key = binary.BigEndian.AppendUint16(key, srcPort)
		key = append(key, dstAddr...)
		key = binary.BigEndian.AppendUint16(key, dstPort)
	} else {
		key = append(key, dstAddr...)
		key = binary.BigEndian.AppendUint16(key, dstPort)
		key = append(key, srcAddr...)
		key = binary.BigEndian.AppendUint16(key, srcPort)
	}
	return key
}

// Stream tracks one direction of a flow.
type Stream struct {
	addr []byte
	port uint16

	hasBaseSeq bool
	baseSeq    uint32
	nextSeq    uint32

	ack     uint32
	winSize uint16
	txSize  uint64
}

func newStream(addr []byte, port uint16) *Stream {
	return &Stream{addr: append([]byte(nil), addr...), port: port}
}

func (s *Stream) matches(addr []byte, port uint16) bool {
	return s.port == port && bytes.Equal(s.addr, addr)
}

func (s *Stream) setBaseSeq(seq uint32, segLen int) {
	s.hasBaseSeq = true
	s.baseSeq = seq
	s.nextSeq = 1 + uint32(segLen)
}

func (s *Stream) incSeq() {
	s.nextSeq++
}

func (s *Stream) toRelSeq(seq uint32) uint32 {
	return seq - s.baseSeq
}

// inWindow is a hook for future TCP window-scale support; until that
// arrives it accepts every sequence number.
func (s *Stream) inWindow(uint32) bool {
	return true
}

// send implements the sender accounting: bootstrap (accept) until a base
// sequence is known, then only advance on an exact match of the expected
// relative sequence.
func (s *Stream) send(seq uint32, dataLen int) bool {
	if !s.hasBaseSeq {
		return true
	}

	rel := seq - s.baseSeq
	if rel != s.nextSeq {
		return false
	}

	s.nextSeq += uint32(dataLen)
	// The source this was ported from never advances tx_size on this
	// path, leaving tx_server/tx_client permanently zero; fixed here.
	s.txSize += uint64(dataLen)
	return true
}

// recv records the latest ack/window advertised by this stream's peer.
func (s *Stream) recv(ack uint32, win uint16) {
	s.ack = ack
	s.winSize = win
}

// segment is an out-of-order parking node. Siblings sharing the same
// relative sequence chain off Next; Tail lets Append stay O(1).
type segment struct {
	data  []byte
	seq   uint32
	flags uint8
	next  *segment
	tail  *segment
}

// newSegment parks a copy of data. The caller's slice aliases a pooled
// packet buffer that gets overwritten once the packet is released, so a
// segment held across packets for later reassembly needs its own backing
// array.
func newSegment(data []byte, seq uint32, flags uint8) *segment {
	owned := append([]byte(nil), data...)
	s := &segment{data: owned, seq: seq, flags: flags}
	s.tail = s
	return s
}

func (s *segment) append(seg *segment) {
	s.tail.next = seg
	s.tail = seg
}

// Session is one bidirectional TCP flow.
type Session struct {
	id     uint64
	tcp    *Module
	status Status

	client, server *Stream
	closing        *Stream

	tsInit, tsEstb time.Time

	reasmBuf []byte
	segMap   map[uint32]*segment
}

func newSession(prop *property.Property, tcp *Module, id uint64) *Session {
	return &Session{
		id:     id,
		tcp:    tcp,
		client: newStream(prop.SrcAddr(), prop.SrcPort()),
		server: newStream(prop.DstAddr(), prop.DstPort()),
		segMap: make(map[uint32]*segment),
	}
}

// ID returns the session's monotonically assigned flow number.
func (s *Session) ID() uint64 { return s.id }

// Status returns the session's current handshake/close state.
func (s *Session) Status() Status { return s.status }

// transState applies the three-way-handshake / close state-transition
// table. It mutates status in place and, when a transition fires the
// established or closed event, pushes it onto prop.
func (s *Session) transState(flags uint8, sender *Stream, seq uint32, segLen int, tv time.Time, prop *property.Property) {
	switch s.status {
	case StatusNone:
		if flags == FlagSYN && sender == s.client {
			s.tsInit = tv
			sender.setBaseSeq(seq, segLen)
			s.status = StatusSynSent
		}

	case StatusSynSent:
		if flags == (FlagSYN|FlagACK) && sender == s.server {
			sender.setBaseSeq(seq, segLen)
			s.status = StatusSynAckSent
		}

	case StatusSynAckSent:
		if flags == FlagACK && sender == s.client {
			s.tsEstb = tv
			s.status = StatusEstablished

			rttUsec := uint32(s.tsEstb.Sub(s.tsInit).Microseconds())
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], rttUsec)
			prop.RetainValue(s.tcp.pRTT3wh.ID).Cpy(buf[:], property.LittleEndian)
			prop.PushEvent(s.tcp.evEstablished.ID)
		}

	case StatusEstablished:
		if flags&FlagFIN != 0 {
			s.closing = sender
			sender.incSeq()
			s.status = StatusClosing
		}

	case StatusClosing:
		if flags&FlagFIN != 0 && sender != s.closing {
			sender.incSeq()
			s.status = StatusClosed
			prop.PushEvent(s.tcp.evClosed.ID)
		}

	case StatusClosed:
		// terminal; ignore further flags.
	}
}

// decodeStream implements segment parking and reassembly. It may recurse
// to deliver a chain of previously parked segments once the sequence gap
// they were blocking on closes.
func (s *Session) decodeStream(prop *property.Property, flags uint8, seq, ack uint32, segData []byte, win uint16, sender, recver *Stream) {
	if !sender.send(seq, len(segData)) {
		if sender.inWindow(seq) {
			rel := sender.toRelSeq(seq)
			seg := newSegment(segData, seq, flags)
			if head, ok := s.segMap[rel]; ok {
				head.append(seg)
			} else {
				s.segMap[rel] = seg
			}
		}
		return
	}

	recver.recv(ack, win)
	s.transState(flags, sender, seq, len(segData), prop.Timestamp(), prop)

	if s.reasmBuf != nil {
		s.reasmBuf = append(s.reasmBuf, segData...)
		prop.RetainValue(s.tcp.pData.ID).Set(s.reasmBuf)
	} else {
		prop.RetainValue(s.tcp.pData.ID).Set(segData)
	}

	if len(s.segMap) > 0 {
		if head, ok := s.segMap[sender.nextSeq]; ok {
			if s.reasmBuf == nil {
				s.reasmBuf = append([]byte(nil), segData...)
			}
			delete(s.segMap, sender.nextSeq)

			for seg := head; seg != nil; seg = seg.next {
				s.decodeStream(prop, seg.flags, seg.seq, ack, seg.data, win, sender, recver)
			}
		}
	}
}

// decode is the outer entry point for one packet belonging to this
// session: it clears any stale reassembly buffer, picks sender/receiver
// by address+port match, runs decodeStream, and publishes the tx-byte
// counters.
func (s *Session) decode(prop *property.Property, flags uint8, seq, ack uint32, segData []byte, win uint16) {
	s.reasmBuf = nil

	sender, recver := s.server, s.client
	if s.client.matches(prop.SrcAddr(), prop.SrcPort()) {
		sender, recver = s.client, s.server
	}

	s.decodeStream(prop, flags, seq, ack, segData, win, sender, recver)

	var txServer, txClient [8]byte
	binary.LittleEndian.PutUint64(txServer[:], s.client.txSize)
	binary.LittleEndian.PutUint64(txClient[:], s.server.txSize)
	prop.RetainValue(s.tcp.pTxServer.ID).Cpy(txServer[:], property.LittleEndian)
	prop.RetainValue(s.tcp.pTxClient.ID).Cpy(txClient[:], property.LittleEndian)
}
