// Package classify implements the rule registry, the constant-time port
// classifier, and the bulk-regex DPI classifier (spec.md §4.1-§4.3).
package classify

import (
	"fmt"

	"firestige.xyz/packetsentry/pkg/packet"
)

// portTableSize is sized at 65536 per protocol, not 65535 (u16.MAX). The
// original source under-sized this table at u16::MAX, making port 65535
// unreachable — see DESIGN.md Open Question 2.
const portTableSize = 65536

// portBase returns the protocol's base offset into the dense port table,
// or -1 if protocol is not one of TCP/UDP/SCTP.
func portBase(p packet.Protocol) int {
	switch p {
	case packet.ProtocolTCP:
		return 0
	case packet.ProtocolUDP:
		return portTableSize
	case packet.ProtocolSCTP:
		return 2 * portTableSize
	default:
		return -1
	}
}

// portClassifier is a densely allocated table of size 3*65536, indexed as
// base[protocol]*65536 + port. Each slot is a MatchedRule with
// ParsersCount == 0 meaning "vacant". A hash table would cost a cache
// miss per lookup on the per-packet hot path; the dense table trades
// memory for an O(1) indexed lookup instead.
type portClassifier struct {
	table [3 * portTableSize]packet.MatchedRule
	// byID maps a canonical RuleID to its table slot index, so GetRule can
	// read the live slot (the table itself is the only state; this is
	// just an index into it) instead of a disconnected snapshot.
	byID map[packet.RuleID]int
}

func newPortClassifier() *portClassifier {
	return &portClassifier{byID: make(map[packet.RuleID]int)}
}

// addRule registers a port rule, returning the canonical RuleID. If the
// slot is vacant, rule.ID is assigned as the canonical id. If occupied,
// the submitter's parser id is appended to the existing slot and the
// slot's original id is returned unchanged (the first submitter defines
// the canonical id).
func (pc *portClassifier) addRule(rule packet.Rule) (packet.RuleID, error) {
	base := portBase(rule.Port.Protocol)
	if base < 0 {
		return 0, fmt.Errorf("classify: port rule protocol %s is not TCP/UDP/SCTP", rule.Port.Protocol)
	}
	idx := base + int(rule.Port.Port)
	slot := &pc.table[idx]

	submitter := rule.Parsers[0]
	if slot.ParsersCount == 0 {
		slot.ID = rule.ID
		slot.Priority = rule.Priority
		slot.Kind = packet.RuleKindPort
		slot.PatternID = -1
		slot.AppendParser(submitter)
		pc.byID[slot.ID] = idx
		return slot.ID, nil
	}
	if !slot.AppendParser(submitter) {
		return 0, fmt.Errorf("classify: too many parsers for rule %d", slot.ID)
	}
	return slot.ID, nil
}

// getRule returns the slot for (protocol, port), or false if vacant.
func (pc *portClassifier) getRule(protocol packet.Protocol, port uint16) (packet.MatchedRule, bool) {
	base := portBase(protocol)
	if base < 0 {
		return packet.MatchedRule{}, false
	}
	slot := pc.table[base+int(port)]
	return slot, slot.ParsersCount > 0
}

// getRuleByID reads the live table slot for a canonical RuleID, reflecting
// any parser appended after the rule was first registered.
func (pc *portClassifier) getRuleByID(id packet.RuleID) (packet.MatchedRule, bool) {
	idx, ok := pc.byID[id]
	if !ok {
		return packet.MatchedRule{}, false
	}
	return pc.table[idx], true
}

// classify appends a copy of the matched slot for both the source and
// destination port of pkt's transport layer, when the transport protocol
// is TCP/UDP/SCTP. Both ports may independently match, and both are
// appended even if their values are equal — dedup across source and
// destination is left to the caller.
func (pc *portClassifier) classify(pkt *packet.Packet) {
	proto := pkt.Layers.Transport.Protocol
	base := portBase(proto)
	if base < 0 {
		return
	}

	if m, ok := pc.getRule(proto, pkt.SrcPort()); ok {
		pkt.Rules.Append(m)
	}
	if m, ok := pc.getRule(proto, pkt.DstPort()); ok {
		pkt.Rules.Append(m)
	}
}
