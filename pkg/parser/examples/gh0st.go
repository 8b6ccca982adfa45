package examples

import (
	"firestige.xyz/packetsentry/pkg/classify"
	"firestige.xyz/packetsentry/pkg/packet"
	"firestige.xyz/packetsentry/pkg/parser"
	"firestige.xyz/packetsentry/pkg/session"
)

func init() {
	parser.Register("gh0st", func() parser.ProtocolParser { return newGh0stParser() })
}

// gh0stParser matches two Gh0st RAT header variants — a Windows build and
// a mac build — each driving its own length-field validation
// (original_source/parsers/misc/src/gh0st.rs). This is the two-rule "Func"
// reverse-callback shape: each rule's MatchedRule.ID picks which extractor
// runs, rather than both rules sharing one ParsePkt branch.
type gh0stParser struct {
	parser.BaseParser
	windowsRuleID packet.RuleID
	macRuleID     packet.RuleID
}

func newGh0stParser() *gh0stParser {
	return &gh0stParser{BaseParser: parser.NewBaseParser("gh0st")}
}

func (p *gh0stParser) Init() error { return nil }
func (p *gh0stParser) Exit() error { return nil }

func (p *gh0stParser) RegisterClassifyRules(mgr *classify.Manager) error {
	windowsID, err := mgr.AddRule(packet.Rule{
		Kind: packet.RuleKindDPI,
		DPI: packet.DpiRule{
			Expression: `^[a-zA-z0-9:]{5}..\x00\x00....\x78\x9c`,
			Protocol:   packet.DpiProtocolTCP,
		},
		Parsers: []packet.ParserID{p.ID()},
	})
	if err != nil {
		return err
	}
	p.windowsRuleID = windowsID

	macID, err := mgr.AddRule(packet.Rule{
		Kind: packet.RuleKindDPI,
		DPI: packet.DpiRule{
			Expression: `^[a-zA-z0-9:]{5}\x00\x00.{6}\x78\x9c`,
			Protocol:   packet.DpiProtocolTCP,
		},
		Parsers: []packet.ParserID{p.ID()},
	})
	if err != nil {
		return err
	}
	p.macRuleID = macID
	return nil
}

func (p *gh0stParser) ParsePkt(pkt *packet.Packet, rule *packet.MatchedRule, sess *session.Session) error {
	if p.IsClassified(sess) {
		return nil
	}

	payload := pkt.Payload()
	if len(payload) < 15 {
		return nil
	}

	switch rule.ID {
	case p.windowsRuleID:
		if uint16(payload[6])<<8|uint16(payload[5]) == uint16(len(payload)) {
			sess.AddProtocol(p.Name())
		} else if payload[11] == 0 && payload[12] == 0 {
			sess.AddProtocol(p.Name())
		}
	case p.macRuleID:
		if uint16(payload[7])<<8|uint16(payload[8]) == uint16(len(payload)) {
			sess.AddProtocol(p.Name())
		}
	}
	return nil
}
