package classify

import (
	"fmt"
	"sync/atomic"

	"firestige.xyz/packetsentry/pkg/packet"
)

// Scratch is the per-worker mutable classify state a caller must hold
// exclusively for the life of its classify loop. It wraps the DPI
// engine's scratch; the port classifier needs none.
type Scratch struct {
	dpi *dpiScratch
}

// Manager owns the port classifier and the DPI classifier (spec.md
// §4.1); it is the registry's rule registry, rule dispatcher, and the
// only thing workers call classify on. It is mutated only during
// startup and becomes effectively immutable after Prepare — Classify is
// then a pure read of shared state plus a write to per-packet-local
// Packet.Rules, safe to call concurrently from any number of workers
// each holding its own Scratch.
type Manager struct {
	port *portClassifier
	dpi  *dpiClassifier

	nextID   uint32
	prepared bool
}

// NewManager returns an empty, unprepared registry.
func NewManager() *Manager {
	return &Manager{
		port: newPortClassifier(),
		dpi:  newDpiClassifier(),
	}
}

// AddRule dispatches rule by its Kind to the port or DPI sub-classifier
// and returns the canonical RuleID. A rule.Kind of RuleKindAll or
// RuleKindProtocol fails: the registry, per spec.md §4.1, owns only the
// port and DPI classifiers — there is no sub-classifier backing a bare
// protocol-wide or "all" rule at this level.
func (m *Manager) AddRule(rule packet.Rule) (packet.RuleID, error) {
	if m.prepared && rule.Kind == packet.RuleKindDPI {
		return 0, fmt.Errorf("classify: cannot add DPI rule after prepare")
	}
	if len(rule.Parsers) != 1 {
		return 0, fmt.Errorf("classify: rule must be submitted with exactly one parser")
	}

	rule.ID = packet.RuleID(atomic.AddUint32(&m.nextID, 1))

	var (
		id  packet.RuleID
		err error
	)
	switch rule.Kind {
	case packet.RuleKindPort:
		id, err = m.port.addRule(rule)
	case packet.RuleKindDPI:
		id, err = m.dpi.addRule(rule)
	default:
		return 0, fmt.Errorf("classify: rule kind %d has no registry-level classifier", rule.Kind)
	}
	if err != nil {
		return 0, err
	}

	return id, nil
}

// Prepare finalizes the DPI pattern database. The port classifier needs
// no preparation. After Prepare, Classify is safe to call from workers.
func (m *Manager) Prepare() error {
	if err := m.dpi.prepare(); err != nil {
		return err
	}
	m.prepared = true
	return nil
}

// AllocScratch returns per-worker mutable scan state; one is required per
// concurrent classifier caller.
func (m *Manager) AllocScratch() (*Scratch, error) {
	dpiScratch, err := m.dpi.allocScratch()
	if err != nil {
		return nil, err
	}
	return &Scratch{dpi: dpiScratch}, nil
}

// Classify runs both sub-classifiers and appends matched rules to
// pkt.Rules. There is no de-duplication across sub-classifiers: if both
// port and DPI match, both records appear, and the downstream pipeline
// joins them by parser id.
func (m *Manager) Classify(pkt *packet.Packet, scratch *Scratch) error {
	m.port.classify(pkt)
	if scratch.dpi != nil {
		if err := m.dpi.classify(pkt, scratch.dpi); err != nil {
			return err
		}
	}
	return nil
}

// GetRule is a read-only lookup used by plugin registration code to
// learn a rule's canonical state post-hoc, including the Hyperscan
// pattern id assigned during DPI registration (MatchedRule.PatternID).
// It reads through to the sub-classifier's own live storage — the same
// slot Classify appends from pkt.Rules — so it always reflects any
// parser appended to the rule after this call's caller first registered
// it (spec.md §4.1's "read-only lookup" contract).
func (m *Manager) GetRule(id packet.RuleID) (packet.MatchedRule, bool) {
	if r, ok := m.port.getRuleByID(id); ok {
		return r, true
	}
	return m.dpi.getRuleByID(id)
}
