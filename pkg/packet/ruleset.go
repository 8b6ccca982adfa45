package packet

// ruleSetInline is the inline capacity of a RuleSet before it spills to a
// heap-backed slice. Per-packet rule accumulation is a hot path; most
// packets match zero or one rule, so avoiding an allocation for the
// common case is the whole point (spec.md §9 small-vector note).
const ruleSetInline = 8

// RuleSet is a small-vector of MatchedRule: the first ruleSetInline
// entries live inline in the struct; further appends spill into an
// overflow slice. There is no third-party small-vector type in the
// example pack (Go's ecosystem generally leans on append-growth slices
// instead), so this is implemented directly over an array + slice.
type RuleSet struct {
	inline   [ruleSetInline]MatchedRule
	inlineN  int
	overflow []MatchedRule
}

// Len returns the number of matched rules accumulated so far.
func (r *RuleSet) Len() int {
	return r.inlineN + len(r.overflow)
}

// Append adds m to the set, spilling to the overflow slice once the
// inline array is full.
func (r *RuleSet) Append(m MatchedRule) {
	if r.inlineN < ruleSetInline {
		r.inline[r.inlineN] = m
		r.inlineN++
		return
	}
	r.overflow = append(r.overflow, m)
}

// At returns the i-th matched rule in append order.
func (r *RuleSet) At(i int) MatchedRule {
	if i < r.inlineN {
		return r.inline[i]
	}
	return r.overflow[i-r.inlineN]
}

// Reset clears the set for reuse on the next packet without releasing the
// overflow slice's backing array.
func (r *RuleSet) Reset() {
	r.inlineN = 0
	r.overflow = r.overflow[:0]
}

// Slice materializes the set as a single contiguous slice. Used by
// parsers iterating matched rules; allocates only when the set has
// spilled.
func (r *RuleSet) Slice() []MatchedRule {
	if len(r.overflow) == 0 {
		return append([]MatchedRule(nil), r.inline[:r.inlineN]...)
	}
	out := make([]MatchedRule, 0, r.Len())
	out = append(out, r.inline[:r.inlineN]...)
	out = append(out, r.overflow...)
	return out
}
