package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDpiProtocolFrom(t *testing.T) {
	assert.Equal(t, DpiProtocolTCP, DpiProtocolFrom(ProtocolTCP))
	assert.Equal(t, DpiProtocolUDP, DpiProtocolFrom(ProtocolUDP))
	assert.Equal(t, DpiProtocolSCTP, DpiProtocolFrom(ProtocolSCTP))
	assert.Equal(t, DpiProtocolAll, DpiProtocolFrom(ProtocolIPv4))
}

func TestDpiProtocolContains(t *testing.T) {
	mask := DpiProtocolSCTP
	assert.False(t, mask.Contains(ProtocolTCP))
	assert.True(t, mask.Contains(ProtocolSCTP))
	assert.True(t, DpiProtocolAll.Contains(ProtocolUDP))
}

func TestDpiRuleEqualIsPairwise(t *testing.T) {
	a := DpiRule{Expression: "^foo", Protocol: DpiProtocolTCP, NeedMatchedPos: true}
	b := DpiRule{Expression: "^foo", Protocol: DpiProtocolTCP, NeedMatchedPos: true}
	c := DpiRule{Expression: "^foo", Protocol: DpiProtocolUDP, NeedMatchedPos: true}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c), "differing protocol mask must break equality")
}

func TestMatchedRuleAppendParserCap(t *testing.T) {
	var m MatchedRule
	for i := 0; i < MaxParsersPerRule; i++ {
		require.True(t, m.AppendParser(ParserID(i)))
	}
	assert.False(t, m.AppendParser(ParserID(99)), "9th distinct parser must be rejected")
	assert.Equal(t, uint8(MaxParsersPerRule), m.ParsersCount)
}

func TestRuleSetSpillsToOverflow(t *testing.T) {
	var rs RuleSet
	for i := 0; i < ruleSetInline+3; i++ {
		rs.Append(MatchedRule{ID: RuleID(i)})
	}
	require.Equal(t, ruleSetInline+3, rs.Len())
	assert.Equal(t, RuleID(0), rs.At(0).ID)
	assert.Equal(t, RuleID(ruleSetInline), rs.At(ruleSetInline).ID)
	assert.Equal(t, RuleID(ruleSetInline+2), rs.At(ruleSetInline+2).ID)

	rs.Reset()
	assert.Equal(t, 0, rs.Len())
}

func TestPacketPayloadInvariant(t *testing.T) {
	// Ethernet(14) + minimal IPv4(20) + TCP(20) header, then payload.
	raw := make([]byte, 14+20+20+4)
	raw[14+20+12] = 5 << 4 // TCP data offset = 5 words = 20 bytes
	copy(raw[14+20+20:], []byte("PING"))

	p := &Packet{Raw: raw}
	p.Layers.Transport = Layer{Offset: 34, Protocol: ProtocolTCP}

	require.NotNil(t, p.Payload())
	assert.Equal(t, "PING", string(p.Payload()))
}

func TestPacketPayloadNilForNonTransport(t *testing.T) {
	p := &Packet{Raw: []byte{1, 2, 3}}
	p.Layers.Transport = Layer{Offset: 0, Protocol: ProtocolIPv4}
	assert.Nil(t, p.Payload())
}

func TestPacketReset(t *testing.T) {
	p := &Packet{Raw: []byte{1}, CapLen: 1}
	p.Rules.Append(MatchedRule{ID: 1})
	p.Reset()
	assert.Nil(t, p.Raw)
	assert.Equal(t, 0, p.Rules.Len())
}
