package parser

import (
	"fmt"
	"plugin"
	"sync/atomic"
)

// Plugin ABI symbol names a dynamic library must export (spec.md §6):
// the host probes for the collection constructor first, falling back to
// the single-parser constructor.
const (
	symbolNewParsers = "NewProtocolParsers"
	symbolNewParser  = "NewProtocolParser"
)

// libraryHandle keeps one dynamically loaded library alive for as long
// as any parser it produced is alive (spec.md §9 "Pointer graphs": the
// source's reference-counted library handle, reimplemented here as
// explicit shared ownership rather than a cyclic structure — no weak
// references are needed since a handle never refers back to its
// parsers). refs is the count of parsers currently holding this handle;
// release decrements it and is a no-op once the plugin runtime itself
// has no way to unload (Go's plugin package never unloads a .so — refs
// exists so callers have one place to learn a library is no longer
// referenced, for logging and for tests exercising shutdown order).
type libraryHandle struct {
	path string
	plug *plugin.Plugin
	refs atomic.Int32
}

func (h *libraryHandle) retain() { h.refs.Add(1) }

func (h *libraryHandle) release() {
	if h.refs.Add(-1) < 0 {
		h.refs.Store(0)
	}
}

// LoadLibrary opens the shared library at path, probes for the
// collection constructor symbol and falls back to the single-parser
// constructor, and adopts every parser it produces into the host — each
// adopted parser retains a reference to the library's handle, since the
// library must outlive every parser it spawned (spec.md §4.6 ownership
// rule).
func (h *Host) LoadLibrary(path string) error {
	plug, err := plugin.Open(path)
	if err != nil {
		return fmt.Errorf("parser: opening library %s: %w", path, err)
	}

	handle := &libraryHandle{path: path, plug: plug}

	parsers, err := probeParsers(plug)
	if err != nil {
		return fmt.Errorf("parser: library %s: %w", path, err)
	}

	for _, p := range parsers {
		handle.retain()
		h.adopt(p)
		// One handles entry per retain, so ExitAll's one release per
		// entry exactly balances the retains above — a library backing
		// N parsers must be released N times, not once.
		h.handles = append(h.handles, handle)
	}
	return nil
}

// probeParsers looks up symbolNewParsers first (the vector-of-parsers
// constructor), then falls back to symbolNewParser (spec.md §6: "the
// host probes for the collection form first, falling back to the single
// form").
func probeParsers(plug *plugin.Plugin) ([]ProtocolParser, error) {
	if sym, err := plug.Lookup(symbolNewParsers); err == nil {
		ctor, ok := sym.(func() []ProtocolParser)
		if !ok {
			return nil, fmt.Errorf("symbol %s has unexpected signature", symbolNewParsers)
		}
		return ctor(), nil
	}

	sym, err := plug.Lookup(symbolNewParser)
	if err != nil {
		return nil, fmt.Errorf("neither %s nor %s exported: %w", symbolNewParsers, symbolNewParser, err)
	}
	ctor, ok := sym.(func() ProtocolParser)
	if !ok {
		return nil, fmt.Errorf("symbol %s has unexpected signature", symbolNewParser)
	}
	return []ProtocolParser{ctor()}, nil
}
