package examples

import (
	"bytes"

	"firestige.xyz/packetsentry/pkg/classify"
	"firestige.xyz/packetsentry/pkg/packet"
	"firestige.xyz/packetsentry/pkg/parser"
	"firestige.xyz/packetsentry/pkg/session"
)

func init() {
	parser.Register("rdp", func() parser.ProtocolParser { return newRdpParser() })
}

// rdpParser matches the RDP/X.224 connection-request TPKT header (a
// cheap regex prefix) then applies a custom extractor in ParsePkt — the
// "Func" reverse-callback shape (spec.md §9) rather than a bare protocol
// label — validating the TPKT length field and, when present, pulling the
// "Cookie: mstshash=<user>\r\n" negotiation field into the session
// (original_source/parsers/misc/src/rdp.rs).
type rdpParser struct {
	parser.BaseParser
	ruleID packet.RuleID
}

func newRdpParser() *rdpParser {
	return &rdpParser{BaseParser: parser.NewBaseParser("rdp")}
}

func (p *rdpParser) Init() error { return nil }
func (p *rdpParser) Exit() error { return nil }

func (p *rdpParser) RegisterClassifyRules(mgr *classify.Manager) error {
	id, err := mgr.AddRule(packet.Rule{
		Kind: packet.RuleKindDPI,
		DPI: packet.DpiRule{
			Expression: `^\x03\x00`,
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

var rdpCookiePrefix = []byte("Cookie: mstshash=")

func (p *rdpParser) ParsePkt(pkt *packet.Packet, rule *packet.MatchedRule, sess *session.Session) error {
	if rule.ID != p.ruleID {
		return nil
	}

	payload := pkt.Payload()
	if len(payload) <= 5 {
		return nil
	}
	if int(payload[3]) >= len(payload) || payload[4] != payload[3]-5 || payload[5] != 0xe0 {
		return nil
	}

	if !p.IsClassified(sess) {
		sess.AddProtocol(p.Name())
	}

	if len(payload) > 30 && bytes.Equal(payload[11:28], rdpCookiePrefix) {
		rest := payload[28:]
		if idx := bytes.Index(rest, []byte("\r\n")); idx >= 0 {
			sess.AddField("user", string(rest[:idx]))
		}
	}
	return nil
}
