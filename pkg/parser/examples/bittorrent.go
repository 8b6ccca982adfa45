// Package examples bundles a handful of statically registered
// ProtocolParsers grounded in original_source/parsers/misc, demonstrating
// the plug-in contract's three reverse-callback shapes (spec.md §9):
// a plain protocol label, a protocol label plus extracted fields, and
// (mongo) a single pattern shared across two payload variants.
package examples

import (
	"firestige.xyz/packetsentry/pkg/classify"
	"firestige.xyz/packetsentry/pkg/packet"
	"firestige.xyz/packetsentry/pkg/parser"
	"firestige.xyz/packetsentry/pkg/session"
)

func init() {
	parser.Register("bittorrent", func() parser.ProtocolParser { return newBittorrentParser() })
}

// bittorrentParser matches three independent BitTorrent signatures:
// the handshake string, the Bsync variant, and the UDP DHT/announce
// bencoded message prefix (original_source/parsers/misc/src/bittorrent.rs).
type bittorrentParser struct {
	parser.BaseParser
	ruleIDs map[packet.RuleID]struct{}
}

func newBittorrentParser() *bittorrentParser {
	return &bittorrentParser{
		BaseParser: parser.NewBaseParser("bittorrent"),
		ruleIDs:    make(map[packet.RuleID]struct{}),
	}
}

func (p *bittorrentParser) Init() error { return nil }
func (p *bittorrentParser) Exit() error { return nil }

func (p *bittorrentParser) RegisterClassifyRules(mgr *classify.Manager) error {
	patterns := []struct {
		expr  string
		proto packet.DpiProtocol
	}{
		{`^\x13BitTorrent protocol`, packet.DpiProtocolTCP},
		{`^Bsync\x00`, packet.DpiProtocolTCP},
		{`^d1:[arq]`, packet.DpiProtocolUDP},
	}

	for _, pat := range patterns {
		rule := packet.Rule{
			Kind: packet.RuleKindDPI,
			DPI: packet.DpiRule{
				Expression: pat.expr,
				Protocol:   pat.proto,
			},
			Parsers: []packet.ParserID{p.ID()},
		}
		id, err := mgr.AddRule(rule)
		if err != nil {
			return err
		}
		p.ruleIDs[id] = struct{}{}
	}
	return nil
}

func (p *bittorrentParser) ParsePkt(pkt *packet.Packet, rule *packet.MatchedRule, sess *session.Session) error {
	if p.IsClassified(sess) {
		return nil
	}
	if _, ok := p.ruleIDs[rule.ID]; !ok {
		return nil
	}
	sess.AddProtocol(p.Name())
	return nil
}
