// Package parser defines the protocol-parser plug-in contract (spec.md
// §4.6, §9 "Dynamic dispatch for parsers") and the two ways a parser is
// discovered: statically linked and registered at init time, or loaded
// from a shared library at runtime (loader.go).
package parser

import (
	"firestige.xyz/packetsentry/pkg/classify"
	"firestige.xyz/packetsentry/pkg/packet"
	"firestige.xyz/packetsentry/pkg/session"
)

// ProtocolParser is the capability set every protocol module implements,
// polymorphic over {id, set_id, name, init, exit,
// register_classify_rules, parse_pkt, is_classified,
// classified_as_this_protocol} per spec.md §9. The host owns one
// heap-allocated instance per loaded parser, addressed by the interface
// value — Go's interface dispatch is this system's vtable.
type ProtocolParser interface {
	// ID returns the id SetID last assigned, or zero before the host
	// assigns one.
	ID() packet.ParserID
	// SetID is called exactly once by the host at load time, before any
	// other method.
	SetID(id packet.ParserID)
	// Name identifies the parser in logs and in Session.Protocols.
	Name() string

	// Init acquires any global resource the parser needs before the
	// first packet arrives. Called once, after SetID, RegisterClassifyRules
	// and Manager.Prepare.
	Init() error
	// Exit releases what Init acquired. Called once at shutdown.
	Exit() error

	// RegisterClassifyRules submits this parser's port and/or DPI rules
	// to mgr, recording the returned canonical RuleIDs in the parser's
	// own reverse map (spec.md §9 "Reverse callback map"). Called once
	// per parser before Manager.Prepare.
	RegisterClassifyRules(mgr *classify.Manager) error

	// ParsePkt is called once per packet for every MatchedRule in
	// pkt.Rules whose Parsers list contains this parser's id. It must be
	// idempotent with respect to protocol labeling — consult
	// IsClassified before calling sess.AddProtocol a second time for the
	// same packet's flow.
	ParsePkt(pkt *packet.Packet, rule *packet.MatchedRule, sess *session.Session) error

	// IsClassified reports whether sess already carries this parser's
	// protocol label, the idempotency guard ParsePkt must honor.
	IsClassified(sess *session.Session) bool
	// ClassifiedAsThisProtocol reports whether protocol name equals this
	// parser's own Name(), so a caller can attribute a session's protocol
	// label to a parser without knowing every other parser's name. The
	// Host itself does not call it.
	ClassifiedAsThisProtocol(protocol string) bool
}

// BaseParser supplies the id bookkeeping, Name, and the two classification
// predicates shared by every parser, so a concrete type only has to embed
// it and implement Init/Exit/RegisterClassifyRules/ParsePkt. Mirrors
// the teacher's pattern of a small embeddable base for common plugin
// bookkeeping (internal/plugin's Plugin/SharablePlugin split).
type BaseParser struct {
	id   packet.ParserID
	name string
}

// NewBaseParser is used by concrete parsers to seed the name Name()
// reports and that the idempotency guard IsClassified and
// ClassifiedAsThisProtocol check against.
func NewBaseParser(name string) BaseParser {
	return BaseParser{name: name}
}

func (b *BaseParser) ID() packet.ParserID      { return b.id }
func (b *BaseParser) SetID(id packet.ParserID) { b.id = id }
func (b *BaseParser) Name() string             { return b.name }

func (b *BaseParser) IsClassified(sess *session.Session) bool {
	return sess.HasProtocol(b.name)
}

func (b *BaseParser) ClassifiedAsThisProtocol(protocol string) bool {
	return protocol == b.name
}
