// Package session holds the minimal per-flow record a parser's ParsePkt
// mutates. Session lifetime management (timeout, eviction, persistence)
// is explicitly out of scope here; this type exists only so the parser
// contract and the end-to-end test scenarios have something concrete to
// mutate.
package session

// Session accumulates protocol labels and extracted fields for one flow.
type Session struct {
	Protocols []string
	Fields    map[string]any
}

// New returns an empty Session ready for parsers to mutate.
func New() *Session {
	return &Session{Fields: make(map[string]any)}
}

// HasProtocol reports whether name was already added, which parsers use
// as the "already classified" idempotency guard spec.md §4.6 requires.
func (s *Session) HasProtocol(name string) bool {
	for _, p := range s.Protocols {
		if p == name {
			return true
		}
	}
	return false
}

// AddProtocol appends name to the session's protocol label set if it is
// not already present.
func (s *Session) AddProtocol(name string) {
	if s.HasProtocol(name) {
		return
	}
	s.Protocols = append(s.Protocols, name)
}

// AddField records an extracted field value, e.g. an RDP cookie username.
func (s *Session) AddField(key string, value any) {
	if s.Fields == nil {
		s.Fields = make(map[string]any)
	}
	s.Fields[key] = value
}
