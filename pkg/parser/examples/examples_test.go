package examples

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/packetsentry/pkg/classify"
	"firestige.xyz/packetsentry/pkg/packet"
	"firestige.xyz/packetsentry/pkg/parser"
	"firestige.xyz/packetsentry/pkg/session"
)

// tcpPacketWithPayload builds a minimal Packet whose Payload() returns
// payload, bypassing the layer parser since these tests only exercise
// classify + ParsePkt.
func tcpPacketWithPayload(payload []byte) *packet.Packet {
	raw := append([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, payload...)
	return &packet.Packet{
		Raw: raw,
		Layers: packet.Layers{
			Transport: packet.Layer{Offset: 0, Protocol: packet.ProtocolTCP},
		},
	}
}

func udpPacketWithPayload(payload []byte) *packet.Packet {
	raw := append([]byte{0, 0, 0, 0, 0, 0, 0, 0}, payload...)
	return &packet.Packet{
		Raw: raw,
		Layers: packet.Layers{
			Transport: packet.Layer{Offset: 0, Protocol: packet.ProtocolUDP},
		},
	}
}

func TestBittorrentS1(t *testing.T) {
	mgr := classify.NewManager()
	p := newBittorrentParser()
	p.SetID(1)
	require.NoError(t, p.RegisterClassifyRules(mgr))
	require.NoError(t, mgr.Prepare())
	scratch, err := mgr.AllocScratch()
	require.NoError(t, err)

	cases := []struct {
		name string
		pkt  *packet.Packet
	}{
		{"handshake", tcpPacketWithPayload([]byte("\x13BitTorrent protocol"))},
		{"bsync", tcpPacketWithPayload([]byte("Bsync\x00"))},
		{"dht", udpPacketWithPayload([]byte("d1:r"))},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.NoError(t, mgr.Classify(c.pkt, scratch))
			require.Equal(t, 1, c.pkt.Rules.Len())

			sess := session.New()
			rule := c.pkt.Rules.At(0)
			require.NoError(t, p.ParsePkt(c.pkt, &rule, sess))
			assert.True(t, sess.HasProtocol("bittorrent"))
		})
	}
}

func TestMongoS5(t *testing.T) {
	mgr := classify.NewManager()
	p := newMongoParser()
	p.SetID(1)
	require.NoError(t, p.RegisterClassifyRules(mgr))
	require.NoError(t, mgr.Prepare())
	scratch, err := mgr.AllocScratch()
	require.NoError(t, err)

	payloads := [][]byte{
		[]byte("12345678\x00\x00\x00\x00\xd4\x07\x00\x00"),
		[]byte("12345678\xff\xff\xff\xff\xd4\x07\x00\x00"),
	}

	for _, payload := range payloads {
		pkt := tcpPacketWithPayload(payload)
		require.NoError(t, mgr.Classify(pkt, scratch))
		require.Equal(t, 1, pkt.Rules.Len())

		sess := session.New()
		rule := pkt.Rules.At(0)
		require.NoError(t, p.ParsePkt(pkt, &rule, sess))
		assert.True(t, sess.HasProtocol("mongo"))
	}
}

func TestRdpS2ExtractsUserField(t *testing.T) {
	mgr := classify.NewManager()
	p := newRdpParser()
	p.SetID(1)
	require.NoError(t, p.RegisterClassifyRules(mgr))
	require.NoError(t, mgr.Prepare())
	scratch, err := mgr.AllocScratch()
	require.NoError(t, err)

	pkt := tcpPacketWithPayload([]byte("\x03\x00\x00\x05\x00\xe0\x00\x00\x00\x00\x00Cookie: mstshash=user\r\n"))
	require.NoError(t, mgr.Classify(pkt, scratch))
	require.Equal(t, 1, pkt.Rules.Len())

	sess := session.New()
	rule := pkt.Rules.At(0)
	require.NoError(t, p.ParsePkt(pkt, &rule, sess))
	assert.True(t, sess.HasProtocol("rdp"))
	assert.Equal(t, "user", sess.Fields["user"])
}

func TestRdpParsePktIdempotentLabeling(t *testing.T) {
	p := newRdpParser()
	p.SetID(1)
	mgr := classify.NewManager()
	require.NoError(t, p.RegisterClassifyRules(mgr))
	require.NoError(t, mgr.Prepare())

	sess := session.New()
	sess.AddProtocol("rdp")
	pkt := tcpPacketWithPayload([]byte("\x03\x00\x00\x05\x00\xe0"))
	rule := packet.MatchedRule{ID: p.ruleID}
	require.NoError(t, p.ParsePkt(pkt, &rule, sess))
	assert.Equal(t, []string{"rdp"}, sess.Protocols)
}

func TestCassandraSetAndDescPrefixes(t *testing.T) {
	mgr := classify.NewManager()
	p := newCassandraParser()
	p.SetID(1)
	require.NoError(t, p.RegisterClassifyRules(mgr))
	require.NoError(t, mgr.Prepare())
	scratch, err := mgr.AllocScratch()
	require.NoError(t, err)

	payloads := [][]byte{
		[]byte("\x00\x00\x00\x25\x80\x01\x00\x01\x00\x00\x00\x0c\x73\x65\x74\x5f"),
		[]byte("\x00\x00\x00\x1d\x80\x01\x00\x01\x00\x00\x00\x10\x64\x65\x73\x63"),
	}

	for _, payload := range payloads {
		pkt := tcpPacketWithPayload(payload)
		require.NoError(t, mgr.Classify(pkt, scratch))
		require.Equal(t, 1, pkt.Rules.Len())

		sess := session.New()
		rule := pkt.Rules.At(0)
		require.NoError(t, p.ParsePkt(pkt, &rule, sess))
		assert.True(t, sess.HasProtocol("cassandra"))
	}
}

func TestRmiStreamMagic(t *testing.T) {
	mgr := classify.NewManager()
	p := newRmiParser()
	p.SetID(1)
	require.NoError(t, p.RegisterClassifyRules(mgr))
	require.NoError(t, mgr.Prepare())
	scratch, err := mgr.AllocScratch()
	require.NoError(t, err)

	pkt := tcpPacketWithPayload([]byte("\x4a\x52\x4d\x49\x00\x02\x4b"))
	require.NoError(t, mgr.Classify(pkt, scratch))
	require.Equal(t, 1, pkt.Rules.Len())

	sess := session.New()
	rule := pkt.Rules.At(0)
	require.NoError(t, p.ParsePkt(pkt, &rule, sess))
	assert.True(t, sess.HasProtocol("rmi"))
}

func TestGh0stWindowsAndMacVariants(t *testing.T) {
	mgr := classify.NewManager()
	p := newGh0stParser()
	p.SetID(1)
	require.NoError(t, p.RegisterClassifyRules(mgr))
	require.NoError(t, mgr.Prepare())
	scratch, err := mgr.AllocScratch()
	require.NoError(t, err)

	cases := []struct {
		name    string
		payload []byte
	}{
		{"windows_length_field", []byte("Gh0st\x0f\x00\x00\x00\x09\x10\x11\x12\x78\x9c")},
		{"windows_zero_fields", []byte("Gh0st\x05\x06\x00\x00\x09\x10\x00\x00\x78\x9c")},
		{"mac_length_field", []byte("Gh0st\x00\x00\x00\x0f\x09\x10\x11\x12\x78\x9c")},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			pkt := tcpPacketWithPayload(c.payload)
			require.NoError(t, mgr.Classify(pkt, scratch))
			require.Equal(t, 1, pkt.Rules.Len())

			sess := session.New()
			rule := pkt.Rules.At(0)
			require.NoError(t, p.ParsePkt(pkt, &rule, sess))
			assert.True(t, sess.HasProtocol("gh0st"))
		})
	}
}

var _ parser.ProtocolParser = (*bittorrentParser)(nil)
var _ parser.ProtocolParser = (*mongoParser)(nil)
var _ parser.ProtocolParser = (*rdpParser)(nil)
var _ parser.ProtocolParser = (*cassandraParser)(nil)
var _ parser.ProtocolParser = (*rmiParser)(nil)
var _ parser.ProtocolParser = (*gh0stParser)(nil)
