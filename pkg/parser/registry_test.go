package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/packetsentry/pkg/classify"
	"firestige.xyz/packetsentry/pkg/packet"
	"firestige.xyz/packetsentry/pkg/session"
)

type fakeParser struct {
	BaseParser
	initCalls, exitCalls int
}

func newFakeParser(name string) *fakeParser {
	return &fakeParser{BaseParser: NewBaseParser(name)}
}

func (f *fakeParser) Init() error { f.initCalls++; return nil }
func (f *fakeParser) Exit() error { f.exitCalls++; return nil }
func (f *fakeParser) RegisterClassifyRules(mgr *classify.Manager) error {
	return nil
}
func (f *fakeParser) ParsePkt(*packet.Packet, *packet.MatchedRule, *session.Session) error {
	return nil
}

func TestRegisterDuplicateNamePanics(t *testing.T) {
	staticMu.Lock()
	delete(staticReg, "dup-test")
	staticMu.Unlock()

	Register("dup-test", func() ProtocolParser { return nil })
	assert.Panics(t, func() {
		Register("dup-test", func() ProtocolParser { return nil })
	})

	staticMu.Lock()
	delete(staticReg, "dup-test")
	staticMu.Unlock()
}

func TestHostLoadStaticAssignsStableIDs(t *testing.T) {
	staticMu.Lock()
	staticReg["fake-a"] = func() ProtocolParser { return newFakeParser("fake-a") }
	staticReg["fake-b"] = func() ProtocolParser { return newFakeParser("fake-b") }
	staticMu.Unlock()
	defer func() {
		staticMu.Lock()
		delete(staticReg, "fake-a")
		delete(staticReg, "fake-b")
		staticMu.Unlock()
	}()

	host := NewHost()
	require.NoError(t, host.LoadStatic("fake-a", "fake-b"))

	assert.Len(t, host.Parsers(), 2)
	a, ok := host.Get(packet.ParserID(1))
	require.True(t, ok)
	assert.Equal(t, "fake-a", a.Name())
	b, ok := host.Get(packet.ParserID(2))
	require.True(t, ok)
	assert.Equal(t, "fake-b", b.Name())

	require.NoError(t, host.InitAll())
	assert.Equal(t, 1, a.(*fakeParser).initCalls)
	assert.Equal(t, 1, b.(*fakeParser).initCalls)

	require.NoError(t, host.ExitAll())
	assert.Equal(t, 1, a.(*fakeParser).exitCalls)
	assert.Equal(t, 1, b.(*fakeParser).exitCalls)
}

func TestNewStaticUnknownNameErrors(t *testing.T) {
	_, err := NewStatic("does-not-exist")
	assert.Error(t, err)
}
