package examples

import (
	"firestige.xyz/packetsentry/pkg/classify"
	"firestige.xyz/packetsentry/pkg/packet"
	"firestige.xyz/packetsentry/pkg/parser"
	"firestige.xyz/packetsentry/pkg/session"
)

func init() {
	parser.Register("rmi", func() parser.ProtocolParser { return newRmiParser() })
}

// rmiParser matches the Java RMI "JRMI" stream magic followed by protocol
// version and the stream id 'K' (original_source/parsers/misc/src/rmi.rs).
// A single rule, a plain protocol label.
type rmiParser struct {
	parser.BaseParser
	ruleID packet.RuleID
}

func newRmiParser() *rmiParser {
	return &rmiParser{BaseParser: parser.NewBaseParser("rmi")}
}

func (p *rmiParser) Init() error { return nil }
func (p *rmiParser) Exit() error { return nil }

func (p *rmiParser) RegisterClassifyRules(mgr *classify.Manager) error {
	id, err := mgr.AddRule(packet.Rule{
		Kind: packet.RuleKindDPI,
		DPI: packet.DpiRule{
			Expression: `^\x4a\x52\x4d\x49\x00\x02\x4b`,
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

func (p *rmiParser) ParsePkt(pkt *packet.Packet, rule *packet.MatchedRule, sess *session.Session) error {
	if rule.ID != p.ruleID || p.IsClassified(sess) {
		return nil
	}
	sess.AddProtocol(p.Name())
	return nil
}
