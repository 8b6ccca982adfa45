package packet

// RuleID stably identifies a deduplicated rule inside a ClassifierManager's
// registry. ParserID stably identifies one loaded parser module.
type RuleID uint32
type ParserID uint8

// MaxParsersPerRule bounds how many distinct parsers may subscribe to one
// deduplicated rule; the fixed-size MatchedRule.parsers array is sized to
// match.
const MaxParsersPerRule = 8

// RuleKind tags which sub-classifier a Rule or MatchedRule belongs to.
type RuleKind uint8

const (
	RuleKindAll RuleKind = iota
	RuleKindProtocol
	RuleKindPort
	RuleKindDPI
)

// PortRule matches a single (port, transport-protocol) pair. Protocols
// other than TCP/UDP/SCTP are rejected at registration.
type PortRule struct {
	Port     uint16
	Protocol Protocol
}

// DpiRule matches payload bytes against a compiled pattern, gated by an
// optional transport-protocol mask. Two DpiRules are value-equal when
// their pattern expression, flags, start-of-match mode, extension
// parameters, and protocol mask all match pairwise (spec's corrected
// equality semantics — see DESIGN.md Open Question 1).
type DpiRule struct {
	Expression     string
	Flags          uint32
	SomLeftMost    bool
	Extension      string
	Protocol       DpiProtocol
	NeedMatchedPos bool
}

// Equal implements the pairwise value-equality semantics DPI rule dedup
// relies on. The original's equivalent check compared several fields of
// self to itself instead of to other — a bug this implementation does not
// reproduce.
func (a DpiRule) Equal(b DpiRule) bool {
	return a.Expression == b.Expression &&
		a.Flags == b.Flags &&
		a.SomLeftMost == b.SomLeftMost &&
		a.Extension == b.Extension &&
		a.Protocol == b.Protocol &&
		a.NeedMatchedPos == b.NeedMatchedPos
}

// Rule is what a parser submits to ClassifierManager.AddRule. On
// submission Parsers holds exactly one entry, the submitting parser; the
// registry assigns ID.
type Rule struct {
	ID       RuleID
	Priority uint16
	Kind     RuleKind
	Protocol Protocol // used when Kind == RuleKindProtocol
	Port     PortRule // used when Kind == RuleKindPort
	DPI      DpiRule  // used when Kind == RuleKindDPI
	Parsers  []ParserID
}

// MatchedRule is the record appended to Packet.Rules during classification.
// Its Parsers array is fixed-size to avoid a heap allocation per match.
type MatchedRule struct {
	ID           RuleID
	Priority     uint16
	Kind         RuleKind
	Parsers      [MaxParsersPerRule]ParserID
	ParsersCount uint8
	HasFromTo    bool
	From, To     uint16
	// PatternID is the Hyperscan pattern id assigned at DPI registration
	// time (its index in the DPI rule vector), -1 for non-DPI rules. This
	// is what ClassifierManager.GetRule lets plugin registration code
	// recover post-hoc.
	PatternID int32
}

// AppendParser adds a subscribing parser id to m, reporting false if the
// MaxParsersPerRule cap would be exceeded.
func (m *MatchedRule) AppendParser(id ParserID) bool {
	if int(m.ParsersCount) >= MaxParsersPerRule {
		return false
	}
	m.Parsers[m.ParsersCount] = id
	m.ParsersCount++
	return true
}

// HasParser reports whether id is among m's subscribing parsers.
func (m *MatchedRule) HasParser(id ParserID) bool {
	for i := uint8(0); i < m.ParsersCount; i++ {
		if m.Parsers[i] == id {
			return true
		}
	}
	return false
}

// ParserIDs returns m's subscribed parsers as a slice.
func (m *MatchedRule) ParserIDs() []ParserID {
	return m.Parsers[:m.ParsersCount]
}
