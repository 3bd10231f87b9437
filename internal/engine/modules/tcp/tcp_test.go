package tcp

import (
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mizuhashi/packetflow/internal/engine/moduleregistry"
	"github.com/mizuhashi/packetflow/internal/engine/packet"
	"github.com/mizuhashi/packetflow/internal/engine/payload"
	"github.com/mizuhashi/packetflow/internal/engine/property"
)

var (
	addrA = net.ParseIP("10.0.0.1").To4()
	addrB = net.ParseIP("10.0.0.2").To4()
)

func buildHeader(srcPort, dstPort uint16, seq, ack uint32, flags uint8, window uint16, payload []byte) []byte {
	buf := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], srcPort)
	binary.BigEndian.PutUint16(buf[2:4], dstPort)
	binary.BigEndian.PutUint32(buf[4:8], seq)
	binary.BigEndian.PutUint32(buf[8:12], ack)
	buf[12] = 5 << 4 // header words = 5 -> 20 bytes, no options
	buf[13] = flags
	binary.BigEndian.PutUint16(buf[14:16], window)
	copy(buf[headerSize:], payload)
	return buf
}

type testHarness struct {
	mod  *Module
	reg  *moduleregistry.Registry
	prop *property.Property
	pd   *payload.Payload
}

func newHarness() *testHarness {
	return newHarnessWithConfig(0, 0, 0)
}

func newHarnessWithConfig(sessionTTL, timeWheelBuckets, maxSessions int) *testHarness {
	reg := moduleregistry.New()
	mod := New(reg, sessionTTL, timeWheelBuckets, maxSessions)
	return &testHarness{
		mod:  mod,
		reg:  reg,
		prop: property.New(reg.ParamCount()),
		pd:   payload.New(),
	}
}

func (h *testHarness) decode(src, dst net.IP, srcPort, dstPort uint16, seq, ack uint32, flags uint8, window uint16, payloadData []byte, ts time.Time) {
	pkt := &packet.Packet{Timestamp: ts}
	h.prop.Init(pkt)
	h.prop.SetSrcAddr(src)
	h.prop.SetDstAddr(dst)

	hdr := buildHeader(srcPort, dstPort, seq, ack, flags, window, payloadData)
	h.pd.Reset(hdr)
	h.mod.Decode(h.pd, h.prop)
}

func hasEvent(prop *property.Property, id property.EventID) bool {
	for _, e := range prop.Events() {
		if e.ID == id {
			return true
		}
	}
	return false
}

func TestMinimalHandshake(t *testing.T) {
	h := newHarness()
	t0 := time.Unix(1000, 0)

	h.decode(addrA, addrB, 12345, 80, 1000, 0, FlagSYN, 4096, nil, t0)
	require.True(t, hasEvent(h.prop, h.mod.evNew.ID))

	h.decode(addrB, addrA, 80, 12345, 2000, 1001, FlagSYN|FlagACK, 4096, nil, t0.Add(5*time.Microsecond))
	assert.False(t, hasEvent(h.prop, h.mod.evEstablished.ID))

	h.decode(addrA, addrB, 12345, 80, 1001, 2001, FlagACK, 4096, nil, t0.Add(10*time.Microsecond))
	require.True(t, hasEvent(h.prop, h.mod.evEstablished.ID))
	assert.Equal(t, uint32(10), h.mod.RTT3wh(h.prop))
}

func TestFullClose(t *testing.T) {
	h := newHarness()
	t0 := time.Unix(2000, 0)

	h.decode(addrA, addrB, 12345, 80, 1000, 0, FlagSYN, 4096, nil, t0)
	h.decode(addrB, addrA, 80, 12345, 2000, 1001, FlagSYN|FlagACK, 4096, nil, t0.Add(time.Microsecond))
	h.decode(addrA, addrB, 12345, 80, 1001, 2001, FlagACK, 4096, nil, t0.Add(2*time.Microsecond))

	h.decode(addrA, addrB, 12345, 80, 1001, 2001, FlagFIN|FlagACK, 4096, nil, t0.Add(3*time.Microsecond))
	assert.False(t, hasEvent(h.prop, h.mod.evClosed.ID))

	h.decode(addrB, addrA, 80, 12345, 2001, 1002, FlagFIN|FlagACK, 4096, nil, t0.Add(4*time.Microsecond))
	assert.True(t, hasEvent(h.prop, h.mod.evClosed.ID))
}

func TestOutOfOrderReassembly(t *testing.T) {
	h := newHarness()
	t0 := time.Unix(3000, 0)

	h.decode(addrA, addrB, 12345, 80, 1000, 0, FlagSYN, 4096, nil, t0)
	h.decode(addrB, addrA, 80, 12345, 2000, 1001, FlagSYN|FlagACK, 4096, nil, t0.Add(time.Microsecond))
	h.decode(addrA, addrB, 12345, 80, 1001, 2001, FlagACK, 4096, nil, t0.Add(2*time.Microsecond))

	key := makeKey(addrA, 12345, addrB, 80)
	node := h.mod.ssnTable.Get(key)
	require.False(t, node.IsNull())
	ssn := node.Data()

	// client.next_seq is 1 (relative) after the handshake; "hello" occupies
	// relative bytes 1-5, so the next in-order byte is relative 6. "world"
	// arrives first, out of order, at that relative position.
	h.decode(addrA, addrB, 12345, 80, 1006, 2001, 0, 4096, []byte("world"), t0.Add(3*time.Microsecond))
	assert.False(t, h.prop.RetainValue(h.mod.pData.ID).IsSet(), "out-of-order segment must not publish data")
	assert.Len(t, ssn.segMap, 1)

	h.decode(addrA, addrB, 12345, 80, 1001, 2001, 0, 4096, []byte("hello"), t0.Add(4*time.Microsecond))
	require.True(t, h.prop.RetainValue(h.mod.pData.ID).IsSet())
	assert.Equal(t, []byte("helloworld"), h.prop.RetainValue(h.mod.pData.ID).Bytes())
	assert.Empty(t, ssn.segMap, "parked segment must be consumed by reassembly")
}

func TestSessionExpiry(t *testing.T) {
	h := newHarness()

	h.decode(addrA, addrB, 12345, 80, 1000, 0, FlagSYN, 4096, nil, time.Unix(1, 0))
	firstID := h.mod.SessionID(h.prop)

	// An unrelated flow's packets carry the wall clock forward past the
	// 300-second session TTL.
	h.decode(net.ParseIP("172.16.0.1").To4(), net.ParseIP("172.16.0.2").To4(), 1, 2, 1, 0, FlagSYN, 4096, nil, time.Unix(302, 0))

	h.decode(addrA, addrB, 12345, 80, 5000, 0, FlagSYN, 4096, nil, time.Unix(303, 0))
	require.True(t, hasEvent(h.prop, h.mod.evNew.ID), "expired flow's next packet must start a fresh session")
	assert.NotEqual(t, firstID, h.mod.SessionID(h.prop))
}

func TestSessionExpiryUsesConfiguredTTL(t *testing.T) {
	h := newHarnessWithConfig(5, 60, 0)

	h.decode(addrA, addrB, 12345, 80, 1000, 0, FlagSYN, 4096, nil, time.Unix(1, 0))
	firstID := h.mod.SessionID(h.prop)

	// A configured TTL of 5s must expire the flow well before the
	// tracker's built-in 300s default would.
	h.decode(net.ParseIP("172.16.0.1").To4(), net.ParseIP("172.16.0.2").To4(), 1, 2, 1, 0, FlagSYN, 4096, nil, time.Unix(7, 0))

	h.decode(addrA, addrB, 12345, 80, 5000, 0, FlagSYN, 4096, nil, time.Unix(8, 0))
	require.True(t, hasEvent(h.prop, h.mod.evNew.ID), "configured TTL must be honored, not the tracker's built-in default")
	assert.NotEqual(t, firstID, h.mod.SessionID(h.prop))
}

func TestMaxSessionsEvictsOldestOnOverflow(t *testing.T) {
	h := newHarnessWithConfig(300, 3600, 1)

	h.decode(addrA, addrB, 12345, 80, 1000, 0, FlagSYN, 4096, nil, time.Unix(1, 0))
	firstKey := makeKey(addrA, 12345, addrB, 80)
	require.False(t, h.mod.ssnTable.Get(firstKey).IsNull())

	other := net.ParseIP("192.168.5.5").To4()
	h.decode(other, addrB, 9999, 80, 2000, 0, FlagSYN, 4096, nil, time.Unix(2, 0))

	assert.True(t, h.mod.ssnTable.Get(firstKey).IsNull(), "a table capped at one session must evict the older flow")
	secondKey := makeKey(other, 9999, addrB, 80)
	assert.False(t, h.mod.ssnTable.Get(secondKey).IsNull())
}

func TestMakeKeySymmetric(t *testing.T) {
	forward := makeKey(addrA, 12345, addrB, 80)
	backward := makeKey(addrB, 80, addrA, 12345)
	assert.Equal(t, forward, backward)
}

func TestStreamSendAdvancesOnlyOnExactMatch(t *testing.T) {
	s := newStream(addrA, 12345)
	s.setBaseSeq(1000, 0) // next_seq starts at 1

	ok := s.send(1000+1, 5) // rel_seq == 1 == next_seq
	assert.True(t, ok)
	assert.EqualValues(t, 6, s.nextSeq)
	assert.EqualValues(t, 5, s.txSize)

	ok = s.send(1000+50, 5) // gap: rel_seq != next_seq
	assert.False(t, ok)
	assert.EqualValues(t, 6, s.nextSeq, "next_seq must not change on a non-matching send")
	assert.EqualValues(t, 5, s.txSize, "tx_size must not change on a non-matching send")
}

func TestStateMonotonicity(t *testing.T) {
	h := newHarness()
	t0 := time.Unix(4000, 0)

	key := makeKey(addrA, 12345, addrB, 80)

	h.decode(addrA, addrB, 12345, 80, 1000, 0, FlagSYN, 4096, nil, t0)
	ssn := h.mod.ssnTable.Get(key).Data()
	assert.Equal(t, StatusSynSent, ssn.status)

	h.decode(addrB, addrA, 80, 12345, 2000, 1001, FlagSYN|FlagACK, 4096, nil, t0.Add(time.Microsecond))
	assert.Equal(t, StatusSynAckSent, ssn.status)

	h.decode(addrA, addrB, 12345, 80, 1001, 2001, FlagACK, 4096, nil, t0.Add(2*time.Microsecond))
	assert.Equal(t, StatusEstablished, ssn.status)

	h.decode(addrA, addrB, 12345, 80, 1001, 2001, FlagFIN|FlagACK, 4096, nil, t0.Add(3*time.Microsecond))
	assert.Equal(t, StatusClosing, ssn.status)

	h.decode(addrB, addrA, 80, 12345, 2001, 1002, FlagFIN|FlagACK, 4096, nil, t0.Add(4*time.Microsecond))
	assert.Equal(t, StatusClosed, ssn.status)
}

func TestTruncatedHeaderReturnsNoneWithoutSessionSideEffects(t *testing.T) {
	h := newHarness()
	h.prop.Init(&packet.Packet{Timestamp: time.Unix(5000, 0)})
	h.prop.SetSrcAddr(addrA)
	h.prop.SetDstAddr(addrB)

	h.pd.Reset([]byte{1, 2, 3})
	id := h.mod.Decode(h.pd, h.prop)

	assert.Equal(t, moduleregistry.NONE, id)
	assert.Equal(t, 0, h.mod.ssnTable.Len())
}
