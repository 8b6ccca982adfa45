package classify

import (
	"fmt"

	"github.com/flier/gohs/hyperscan"

	"firestige.xyz/packetsentry/pkg/packet"
)

// dpiEntry pairs an accumulated DpiRule with the MatchedRule sibling
// classify() copies into a packet's rule set on a hit.
type dpiEntry struct {
	rule    packet.DpiRule
	matched packet.MatchedRule
}

// dpiClassifier accumulates DPI rules, then compiles them into a single
// Hyperscan block database once Prepare is called. No registration is
// permitted after Prepare (spec.md §4.3's reference contract); violating
// this is a programming error, not a runtime one.
type dpiClassifier struct {
	entries  []dpiEntry
	db       hyperscan.BlockDatabase
	prepared bool
	// byID maps a canonical RuleID to its index in entries (also its
	// Hyperscan pattern id), so GetRule can read the live entry instead
	// of a disconnected snapshot.
	byID map[packet.RuleID]int
}

func newDpiClassifier() *dpiClassifier {
	return &dpiClassifier{byID: make(map[packet.RuleID]int)}
}

// addRule linear-scans existing DPI rules for value-equality (spec.md §3;
// the corrected pairwise equality — see DESIGN.md Open Question 1). If
// found, the submitter's parser id is appended to the existing sibling
// MatchedRule. Else a new entry is pushed, with its engine pattern id set
// to the entry's index in the accumulator.
func (dc *dpiClassifier) addRule(rule packet.Rule) (packet.RuleID, error) {
	if dc.prepared {
		return 0, fmt.Errorf("classify: cannot add DPI rule after prepare")
	}

	submitter := rule.Parsers[0]
	for i := range dc.entries {
		if dc.entries[i].rule.Equal(rule.DPI) {
			if !dc.entries[i].matched.AppendParser(submitter) {
				return 0, fmt.Errorf("classify: too many parsers for rule %d", dc.entries[i].matched.ID)
			}
			return dc.entries[i].matched.ID, nil
		}
	}

	patternID := len(dc.entries)
	m := packet.MatchedRule{
		ID:        rule.ID,
		Priority:  rule.Priority,
		Kind:      packet.RuleKindDPI,
		PatternID: int32(patternID),
	}
	m.AppendParser(submitter)
	dc.entries = append(dc.entries, dpiEntry{rule: rule.DPI, matched: m})
	dc.byID[m.ID] = patternID
	return m.ID, nil
}

// getRuleByID reads the live entry for a canonical RuleID, reflecting any
// parser appended after the rule was first registered.
func (dc *dpiClassifier) getRuleByID(id packet.RuleID) (packet.MatchedRule, bool) {
	idx, ok := dc.byID[id]
	if !ok {
		return packet.MatchedRule{}, false
	}
	return dc.entries[idx].matched, true
}

// prepare builds the Hyperscan pattern database from the accumulated DPI
// rules. Building nothing per-packet: the database and patterns are
// fixed after this call. When no DPI rules were registered, prepare is a
// no-op and classify becomes a no-op too (invariant 6 in spec.md §8).
func (dc *dpiClassifier) prepare() error {
	if len(dc.entries) == 0 {
		dc.prepared = true
		return nil
	}

	patterns := make([]*hyperscan.Pattern, len(dc.entries))
	for i, e := range dc.entries {
		p := hyperscan.NewPattern(e.rule.Expression, hyperscan.DotAll|hyperscan.MultiLine)
		// Without a start-of-match flag Hyperscan reports from=0, so a rule
		// that asks for its matched position needs SOM as well.
		if e.rule.SomLeftMost || e.rule.NeedMatchedPos {
			p.Flags |= hyperscan.SomLeftMost
		}
		p.Id = i
		patterns[i] = p
	}

	db, err := hyperscan.NewBlockDatabase(patterns...)
	if err != nil {
		return fmt.Errorf("classify: building DPI pattern database: %w", err)
	}
	dc.db = db
	dc.prepared = true
	return nil
}

// dpiScratch is the per-worker mutable Hyperscan scan state. It is not
// thread-safe; one is required per concurrent classifier caller.
type dpiScratch struct {
	scratch *hyperscan.Scratch
}

// allocScratch returns a fresh scratch, or nil if no DPI rules were
// registered (spec.md §4.3).
func (dc *dpiClassifier) allocScratch() (*dpiScratch, error) {
	if dc.db == nil {
		return nil, nil
	}
	s, err := hyperscan.NewScratch(dc.db)
	if err != nil {
		return nil, fmt.Errorf("classify: allocating DPI scratch: %w", err)
	}
	return &dpiScratch{scratch: s}, nil
}

// dpiMatch is one accumulated (pattern id, from, to) triple. The slice
// backing these is expected to stay small per scan; the spec's small-vector
// note applies to the accumulation buffer conceptually, though Go's
// growable slice already avoids the per-match heap churn a fixed C struct
// array would need to sidestep.
type dpiMatch struct {
	id       int
	from, to uint64
}

// classify scans pkt's payload against the compiled database, gates each
// match by the packet's actual transport protocol, and appends matching
// rules (with optional from/to offsets) into pkt.Rules.
func (dc *dpiClassifier) classify(pkt *packet.Packet, scratch *dpiScratch) error {
	if dc.db == nil {
		return nil
	}
	payload := pkt.Payload()
	if len(payload) == 0 {
		return nil
	}

	var matches []dpiMatch
	handler := func(id uint, from, to uint64, flags uint, context interface{}) error {
		matches = append(matches, dpiMatch{id: int(id), from: from, to: to})
		return nil // Continue: keep scanning so every pattern that hits is reported.
	}

	if err := dc.db.Scan(payload, scratch.scratch, handler, nil); err != nil {
		return fmt.Errorf("classify: DPI scan failed: %w", err)
	}

	transport := pkt.Layers.Transport.Protocol
	for _, mt := range matches {
		if mt.id < 0 || mt.id >= len(dc.entries) {
			continue
		}
		entry := &dc.entries[mt.id]
		if !entry.rule.Protocol.Contains(transport) {
			continue // gated out: transport protocol not in the rule's mask.
		}
		m := entry.matched
		if entry.rule.NeedMatchedPos {
			m.HasFromTo = true
			m.From = uint16(mt.from)
			m.To = uint16(mt.to)
		}
		pkt.Rules.Append(m)
	}
	return nil
}
