package examples

import (
	"firestige.xyz/packetsentry/pkg/classify"
	"firestige.xyz/packetsentry/pkg/packet"
	"firestige.xyz/packetsentry/pkg/parser"
	"firestige.xyz/packetsentry/pkg/session"
)

func init() {
	parser.Register("mongo", func() parser.ProtocolParser { return newMongoParser() })
}

// mongoParser matches MongoDB wire protocol's fixed OP_QUERY opcode
// (2004, little-endian 0xd4 0x07 0x00 0x00) following an 8-byte header
// and a 4-byte flags field that is either all-zero or all-0xff
// (original_source/parsers/misc/src/mongo.rs), scenario S5.
type mongoParser struct {
	parser.BaseParser
	ruleID packet.RuleID
}

func newMongoParser() *mongoParser {
	return &mongoParser{BaseParser: parser.NewBaseParser("mongo")}
}

func (p *mongoParser) Init() error { return nil }
func (p *mongoParser) Exit() error { return nil }

func (p *mongoParser) RegisterClassifyRules(mgr *classify.Manager) error {
	id, err := mgr.AddRule(packet.Rule{
		Kind: packet.RuleKindDPI,
		DPI: packet.DpiRule{
			Expression: `^.{8}[\x00\xff]{4}\xd4\x07\x00\x00`,
			Protocol:   packet.DpiProtocolTCP,
		},
		Parsers: []packet.ParserID{p.ID()},
	})
	if err != nil {
		return err
	}
	p.ruleID = id
	return nil
}

func (p *mongoParser) ParsePkt(pkt *packet.Packet, rule *packet.MatchedRule, sess *session.Session) error {
	if p.IsClassified(sess) || rule.ID != p.ruleID {
		return nil
	}
	sess.AddProtocol(p.Name())
	return nil
}
