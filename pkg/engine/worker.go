// Package engine wires the classification subsystem (pkg/classify) and
// the parser plug-in contract (pkg/parser) onto one fanout channel's
// worth of packets (spec.md §5's "classification / session threads").
// Session assembly itself — timeout, eviction, persistence — is out of
// scope (spec.md Non-goals); the flow map kept here exists only so a
// parser's idempotency guard (IsClassified) has something real to check
// across a flow's packets, not as a durable session store.
package engine

import (
	"firestige.xyz/packetsentry/internal/log"
	"firestige.xyz/packetsentry/pkg/classify"
	"firestige.xyz/packetsentry/pkg/ingress"
	"firestige.xyz/packetsentry/pkg/packet"
	"firestige.xyz/packetsentry/pkg/parser"
	"firestige.xyz/packetsentry/pkg/session"
)

// Worker owns one Scratch exclusively for its lifetime and reads from
// one fanout channel (spec.md §5: "each owns one Scratch exclusively
// for the lifetime of the thread; each reads from one input channel").
type Worker struct {
	id      int
	in      <-chan *packet.Packet
	mgr     *classify.Manager
	scratch *classify.Scratch
	host    *parser.Host
	log     log.Logger

	flows map[ingress.FiveTuple]*session.Session
}

// NewWorker allocates a fresh Scratch from mgr and returns a Worker
// ready to Run against in.
func NewWorker(id int, in <-chan *packet.Packet, mgr *classify.Manager, host *parser.Host, logger log.Logger) (*Worker, error) {
	scratch, err := mgr.AllocScratch()
	if err != nil {
		return nil, err
	}
	return &Worker{
		id:      id,
		in:      in,
		mgr:     mgr,
		scratch: scratch,
		host:    host,
		log:     logger,
		flows:   make(map[ingress.FiveTuple]*session.Session),
	}, nil
}

// Run classifies every packet arriving on w.in and dispatches each
// matched rule to the parsers subscribed to it, until in is closed.
// Classify's internal DPI scan failure is an engine-corruption signal
// (spec.md §7): Run logs it and returns, aborting this worker while its
// siblings continue.
func (w *Worker) Run() {
	for pkt := range w.in {
		if err := w.mgr.Classify(pkt, w.scratch); err != nil {
			w.log.WithError(err).Errorf("engine[%d]: classify failed, aborting worker", w.id)
			return
		}
		w.dispatch(pkt)
	}
}

func (w *Worker) dispatch(pkt *packet.Packet) {
	sess := w.sessionFor(pkt)

	rules := pkt.Rules.Slice()
	for i := range rules {
		rule := rules[i]
		for _, pid := range rule.ParserIDs() {
			p, ok := w.host.Get(pid)
			if !ok {
				continue
			}
			if err := p.ParsePkt(pkt, &rule, sess); err != nil {
				w.log.WithError(err).Warnf("engine[%d]: parser %q failed on matched rule %d", w.id, p.Name(), rule.ID)
			}
		}
	}
}

func (w *Worker) sessionFor(pkt *packet.Packet) *session.Session {
	if !pkt.Layers.Transport.Protocol.IsTransport() {
		return session.New()
	}
	key := ingress.FlowKey(pkt)
	sess, ok := w.flows[key]
	if !ok {
		sess = session.New()
		w.flows[key] = sess
	}
	return sess
}
