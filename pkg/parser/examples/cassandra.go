package examples

import (
	"firestige.xyz/packetsentry/pkg/classify"
	"firestige.xyz/packetsentry/pkg/packet"
	"firestige.xyz/packetsentry/pkg/parser"
	"firestige.xyz/packetsentry/pkg/session"
)

func init() {
	parser.Register("cassandra", func() parser.ProtocolParser { return newCassandraParser() })
}

// cassandraParser matches the two CQL native-protocol prefixes the
// original observes for a SET and a DESC startup query
// (original_source/parsers/misc/src/cassandra.rs). Both rules carry a
// plain protocol label.
type cassandraParser struct {
	parser.BaseParser
	ruleIDs map[packet.RuleID]struct{}
}

func newCassandraParser() *cassandraParser {
	return &cassandraParser{
		BaseParser: parser.NewBaseParser("cassandra"),
		ruleIDs:    make(map[packet.RuleID]struct{}),
	}
}

func (p *cassandraParser) Init() error { return nil }
func (p *cassandraParser) Exit() error { return nil }

func (p *cassandraParser) RegisterClassifyRules(mgr *classify.Manager) error {
	patterns := []string{
		`^\x00\x00\x00\x25\x80\x01\x00\x01\x00\x00\x00\x0c\x73\x65\x74\x5f`,
		`^\x00\x00\x00\x1d\x80\x01\x00\x01\x00\x00\x00\x10\x64\x65\x73\x63`,
	}

	for _, expr := range patterns {
		id, err := mgr.AddRule(packet.Rule{
			Kind: packet.RuleKindDPI,
			DPI: packet.DpiRule{
				Expression: expr,
				Protocol:   packet.DpiProtocolTCP,
			},
			Parsers: []packet.ParserID{p.ID()},
		})
		if err != nil {
			return err
		}
		p.ruleIDs[id] = struct{}{}
	}
	return nil
}

func (p *cassandraParser) ParsePkt(pkt *packet.Packet, rule *packet.MatchedRule, sess *session.Session) error {
	if p.IsClassified(sess) {
		return nil
	}
	if _, ok := p.ruleIDs[rule.ID]; !ok {
		return nil
	}
	sess.AddProtocol(p.Name())
	return nil
}
