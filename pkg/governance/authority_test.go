package governance

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func defaultResolver(t *testing.T) *AuthorityResolver {
	t.Helper()
	thresholds, err := DefaultGovernanceConfig().ResolveThresholds()
	require.NoError(t, err)
	return NewAuthorityResolver(thresholds)
}

func TestAuthorityResolver_SPIFTiers(t *testing.T) {
	r := defaultResolver(t)

	tests := []struct {
		amount        float64
		wantAuthority string
		wantTimeline  int
	}{
		{0, "SGCC", 5},
		{40000, "SGCC", 5},
		{49999.99, "SGCC", 5},
		{50000, "SGCC+CFO", 10}, // boundary belongs to the upper tier
		{150000, "SGCC+CFO", 10},
		{250000, "SGCC+CEO", 15},
		{300000, "SGCC+CEO", 15},
		{10000000, "SGCC+CEO", 15},
	}
	for _, tt := range tests {
		res, err := r.Resolve(DecisionSPIFApproval, amount(tt.amount))
		require.NoError(t, err, "amount %v", tt.amount)
		assert.Equal(t, tt.wantAuthority, res.Authority, "amount %v", tt.amount)
		assert.Equal(t, tt.wantTimeline, res.Threshold.TimelineDays, "amount %v", tt.amount)
	}
}

func TestAuthorityResolver_ExceptionTiers(t *testing.T) {
	r := defaultResolver(t)

	res, err := r.Resolve(DecisionExceptionRequest, amount(1000))
	require.NoError(t, err)
	assert.Equal(t, "Manager", res.Authority)

	res, err = r.Resolve(DecisionExceptionRequest, amount(10000))
	require.NoError(t, err)
	assert.Equal(t, "Regional", res.Authority)

	res, err = r.Resolve(DecisionExceptionRequest, amount(100000))
	require.NoError(t, err)
	assert.Equal(t, "CRB", res.Authority)
}

func TestAuthorityResolver_NoUnboundedRule(t *testing.T) {
	// Table without an unbounded upper tier: amounts past the top yield
	// ErrNoAuthority rather than a silent default.
	thresholds := []DecisionThreshold{
		{DecisionType: string(DecisionSPIFApproval), AmountMin: amount(0), AmountMax: amount(50000), Authority: "SGCC", TimelineDays: 5},
		{DecisionType: string(DecisionSPIFApproval), AmountMin: amount(50000), AmountMax: amount(250000), Authority: "SGCC+CFO", TimelineDays: 10},
	}
	r := NewAuthorityResolver(thresholds)

	res, err := r.Resolve(DecisionSPIFApproval, amount(40000))
	require.NoError(t, err)
	assert.Equal(t, "SGCC", res.Authority)

	res, err = r.Resolve(DecisionSPIFApproval, amount(150000))
	require.NoError(t, err)
	assert.Equal(t, "SGCC+CFO", res.Authority)

	_, err = r.Resolve(DecisionSPIFApproval, amount(300000))
	assert.ErrorIs(t, err, ErrNoAuthority)
}

func TestAuthorityResolver_NilAmount(t *testing.T) {
	r := defaultResolver(t)

	// POLICY_CHANGE has an unconditional rule; no amount required.
	res, err := r.Resolve(DecisionPolicyChange, nil)
	require.NoError(t, err)
	assert.Equal(t, "SGCC+Legal", res.Authority)
	assert.Equal(t, 30, res.Threshold.TimelineDays)

	// SPIF rules are all amount-bounded; nil amount matches nothing.
	_, err = r.Resolve(DecisionSPIFApproval, nil)
	assert.ErrorIs(t, err, ErrNoAuthority)
}

func TestAuthorityResolver_UnknownDecisionType(t *testing.T) {
	r := defaultResolver(t)
	_, err := r.Resolve(DecisionType("BONUS_REVIEW"), amount(100))
	assert.ErrorIs(t, err, ErrNoAuthority)
}

func TestAuthorityResolver_NarrowestMatchWins(t *testing.T) {
	// A narrow carve-out inside a broad band wins regardless of order.
	thresholds := []DecisionThreshold{
		{DecisionType: "EXCEPTION_REQUEST", AmountMin: amount(0), AmountMax: amount(100000), Authority: "Broad", TimelineDays: 10},
		{DecisionType: "EXCEPTION_REQUEST", AmountMin: amount(40000), AmountMax: amount(60000), Authority: "Narrow", TimelineDays: 5},
	}
	r := NewAuthorityResolver(thresholds)

	res, err := r.Resolve(DecisionExceptionRequest, amount(50000))
	require.NoError(t, err)
	assert.Equal(t, "Narrow", res.Authority)

	res, err = r.Resolve(DecisionExceptionRequest, amount(10000))
	require.NoError(t, err)
	assert.Equal(t, "Broad", res.Authority)
}

func TestAuthorityResolver_BoundedBeatsUnbounded(t *testing.T) {
	thresholds := []DecisionThreshold{
		{DecisionType: "WINDFALL_REVIEW", AmountMin: amount(0), Authority: "CatchAll", TimelineDays: 10},
		{DecisionType: "WINDFALL_REVIEW", AmountMin: amount(0), AmountMax: amount(10000), Authority: "Bounded", TimelineDays: 5},
	}
	r := NewAuthorityResolver(thresholds)

	res, err := r.Resolve(DecisionWindfallReview, amount(5000))
	require.NoError(t, err)
	assert.Equal(t, "Bounded", res.Authority)

	res, err = r.Resolve(DecisionWindfallReview, amount(50000))
	require.NoError(t, err)
	assert.Equal(t, "CatchAll", res.Authority)
}

func TestAuthorityResolver_Deterministic(t *testing.T) {
	r := defaultResolver(t)
	for i := 0; i < 10; i++ {
		res, err := r.Resolve(DecisionSPIFApproval, amount(150000))
		require.NoError(t, err)
		assert.Equal(t, "SGCC+CFO", res.Authority)
	}
}
