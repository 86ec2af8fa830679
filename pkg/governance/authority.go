package governance

import (
	"github.com/shopspring/decimal"
)

// AuthorityResolution is the outcome of resolving a decision to a committee
// or role with authority over it.
type AuthorityResolution struct {
	Authority string            `json:"authority"`
	Threshold DecisionThreshold `json:"threshold"`
}

// AuthorityResolver selects the threshold rule with authority over a decision
// type and optional amount. It is a pure function over a static threshold
// table; the table is snapshotted at construction and never mutated.
type AuthorityResolver struct {
	thresholds []DecisionThreshold
}

// NewAuthorityResolver creates a resolver over the given threshold rows.
// Row order is configuration order and is the final tie-breaker.
func NewAuthorityResolver(thresholds []DecisionThreshold) *AuthorityResolver {
	rows := make([]DecisionThreshold, len(thresholds))
	copy(rows, thresholds)
	return &AuthorityResolver{thresholds: rows}
}

// Resolve returns the rule with authority over (decisionType, amount).
//
// Matching: the amount must fall in the half-open range [amountMin, amountMax);
// a nil min counts as zero, a nil max as unbounded. When amount is nil, only
// rules with neither bound set match; a missing unconditional rule yields
// ErrNoAuthority rather than defaulting to an arbitrary committee.
//
// Among matches the narrowest bounded range wins; ties prefer a rule with both
// bounds set over one with a single bound, then configuration order.
func (r *AuthorityResolver) Resolve(decisionType DecisionType, amount *decimal.Decimal) (*AuthorityResolution, error) {
	var best *DecisionThreshold
	for i := range r.thresholds {
		t := &r.thresholds[i]
		if t.DecisionType != string(decisionType) {
			continue
		}
		if !thresholdMatches(t, amount) {
			continue
		}
		if best == nil || narrower(t, best) {
			best = t
		}
	}
	if best == nil {
		return nil, ErrNoAuthority
	}
	return &AuthorityResolution{Authority: best.Authority, Threshold: *best}, nil
}

// Thresholds returns a copy of the resolver's threshold table.
func (r *AuthorityResolver) Thresholds() []DecisionThreshold {
	rows := make([]DecisionThreshold, len(r.thresholds))
	copy(rows, r.thresholds)
	return rows
}

func thresholdMatches(t *DecisionThreshold, amount *decimal.Decimal) bool {
	if amount == nil {
		return t.AmountMin == nil && t.AmountMax == nil
	}
	min := decimal.Zero
	if t.AmountMin != nil {
		min = *t.AmountMin
	}
	if amount.LessThan(min) {
		return false
	}
	if t.AmountMax != nil && !amount.LessThan(*t.AmountMax) {
		return false
	}
	return true
}

// narrower reports whether candidate should be preferred over current. An
// unbounded range has infinite width, so any bounded range beats it.
func narrower(candidate, current *DecisionThreshold) bool {
	cw, cBounded := rangeWidth(candidate)
	bw, bBounded := rangeWidth(current)

	switch {
	case cBounded && !bBounded:
		return true
	case !cBounded && bBounded:
		return false
	case cBounded && bBounded && !cw.Equal(bw):
		return cw.LessThan(bw)
	}

	// Equal width (or both unbounded): prefer the rule with more bounds set.
	return boundCount(candidate) > boundCount(current)
}

func rangeWidth(t *DecisionThreshold) (decimal.Decimal, bool) {
	if t.AmountMax == nil {
		return decimal.Zero, false
	}
	min := decimal.Zero
	if t.AmountMin != nil {
		min = *t.AmountMin
	}
	return t.AmountMax.Sub(min), true
}

func boundCount(t *DecisionThreshold) int {
	n := 0
	if t.AmountMin != nil {
		n++
	}
	if t.AmountMax != nil {
		n++
	}
	return n
}
