package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/packetsentry/internal/log"
	"firestige.xyz/packetsentry/pkg/classify"
	"firestige.xyz/packetsentry/pkg/ingress"
	"firestige.xyz/packetsentry/pkg/packet"
	"firestige.xyz/packetsentry/pkg/parser"
	_ "firestige.xyz/packetsentry/pkg/parser/examples"
)

func testLogger(t *testing.T) log.Logger {
	t.Helper()
	log.Init(&log.LoggerConfig{Level: "info", Pattern: "%msg", Time: "2006-01-02"})
	return log.GetLogger()
}

func tcpPacketWithPayload(payload []byte) *packet.Packet {
	raw := append([]byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, payload...)
	return &packet.Packet{
		Raw: raw,
		Layers: packet.Layers{
			Transport: packet.Layer{Offset: 0, Protocol: packet.ProtocolTCP},
		},
	}
}

func TestWorkerRunClassifiesAndDispatchesToParser(t *testing.T) {
	mgr := classify.NewManager()
	host := parser.NewHost()
	require.NoError(t, host.LoadStatic("bittorrent"))
	require.NoError(t, host.Parsers()[0].RegisterClassifyRules(mgr))
	require.NoError(t, mgr.Prepare())

	in := make(chan *packet.Packet, 1)
	w, err := NewWorker(0, in, mgr, host, testLogger(t))
	require.NoError(t, err)

	pkt := tcpPacketWithPayload([]byte("\x13BitTorrent protocol"))
	in <- pkt
	close(in)

	done := make(chan struct{})
	go func() { w.Run(); close(done) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not finish")
	}

	assert.Equal(t, 1, pkt.Rules.Len())
	sess, ok := w.flows[ingress.FlowKey(pkt)]
	require.True(t, ok)
	assert.True(t, sess.HasProtocol("bittorrent"))
}

func TestWorkerSessionForReusesFlowAcrossPackets(t *testing.T) {
	mgr := classify.NewManager()
	host := parser.NewHost()
	in := make(chan *packet.Packet)
	w, err := NewWorker(0, in, mgr, host, testLogger(t))
	require.NoError(t, err)

	pkt1 := tcpPacketWithPayload([]byte("a"))
	pkt2 := tcpPacketWithPayload([]byte("b"))

	s1 := w.sessionFor(pkt1)
	s2 := w.sessionFor(pkt2)
	assert.Same(t, s1, s2, "identical 5-tuples must share one session")
}
