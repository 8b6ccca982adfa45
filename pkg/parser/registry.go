package parser

import (
	"fmt"
	"sort"
	"sync"

	"firestige.xyz/packetsentry/pkg/packet"
)

// Constructor builds a fresh ProtocolParser instance. Statically bundled
// parsers (pkg/parser/examples) register a Constructor from an init()
// function, mirroring the teacher's internal/plugin registration pattern
// but keyed by a constructor rather than a live instance, since a parser
// must be constructed fresh per Host (each Host assigns its own
// ParserIDs).
type Constructor func() ProtocolParser

var (
	staticMu  sync.Mutex
	staticReg = map[string]Constructor{}
)

// Register adds a statically linked parser constructor under name,
// callable from an init() function in a parser's own package. Panics on
// a duplicate name — a programming error caught at process startup, not
// a runtime condition to recover from.
func Register(name string, ctor Constructor) {
	staticMu.Lock()
	defer staticMu.Unlock()
	if _, exists := staticReg[name]; exists {
		panic(fmt.Sprintf("parser: duplicate static registration for %q", name))
	}
	staticReg[name] = ctor
}

// StaticNames returns every statically registered parser name, sorted
// for deterministic load order.
func StaticNames() []string {
	staticMu.Lock()
	defer staticMu.Unlock()
	names := make([]string, 0, len(staticReg))
	for name := range staticReg {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStatic constructs a fresh instance of the statically registered
// parser name.
func NewStatic(name string) (ProtocolParser, error) {
	staticMu.Lock()
	ctor, ok := staticReg[name]
	staticMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("parser: no statically registered parser named %q", name)
	}
	return ctor(), nil
}

// Host owns every loaded parser (static and dynamic) and assigns each a
// stable ParserID at load time (spec.md §4.6: "assigned by the host at
// load time"). It is built once at startup and is read-only once loading
// completes.
type Host struct {
	parsers []ProtocolParser
	byID    map[packet.ParserID]ProtocolParser
	nextID  uint32
	handles []*libraryHandle
}

// NewHost returns an empty Host ready to accept parsers via LoadStatic
// and LoadLibrary.
func NewHost() *Host {
	return &Host{byID: make(map[packet.ParserID]ProtocolParser)}
}

// LoadStatic constructs and registers every statically linked parser
// named in names, in order.
func (h *Host) LoadStatic(names ...string) error {
	for _, name := range names {
		p, err := NewStatic(name)
		if err != nil {
			return err
		}
		h.adopt(p)
	}
	return nil
}

func (h *Host) adopt(p ProtocolParser) {
	h.nextID++
	id := packet.ParserID(h.nextID)
	p.SetID(id)
	h.parsers = append(h.parsers, p)
	h.byID[id] = p
}

// Parsers returns every loaded parser, in load order.
func (h *Host) Parsers() []ProtocolParser { return h.parsers }

// Get looks up a loaded parser by id.
func (h *Host) Get(id packet.ParserID) (ProtocolParser, bool) {
	p, ok := h.byID[id]
	return p, ok
}

// InitAll calls Init on every loaded parser, stopping at the first
// error — a config/registration failure is fatal for that plugin but
// the caller decides whether it is fatal for the process (spec.md §7).
func (h *Host) InitAll() error {
	for _, p := range h.parsers {
		if err := p.Init(); err != nil {
			return fmt.Errorf("parser %q: init: %w", p.Name(), err)
		}
	}
	return nil
}

// ExitAll calls Exit on every loaded parser in reverse load order, then
// releases every dynamic library handle reference it holds (a release
// only lowers the handle's reference count; Go's plugin package never
// unloads a library). Errors are collected, not
// short-circuited — shutdown must release everything it can regardless
// of one parser's Exit failing.
func (h *Host) ExitAll() error {
	var firstErr error
	for i := len(h.parsers) - 1; i >= 0; i-- {
		if err := h.parsers[i].Exit(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("parser %q: exit: %w", h.parsers[i].Name(), err)
		}
	}
	for _, handle := range h.handles {
		handle.release()
	}
	return firstErr
}
