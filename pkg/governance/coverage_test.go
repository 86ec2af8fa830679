package governance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMatrix = `
requirements:
  - id: REQ-CLAWBACK
    name: Clawback terms
    area: compensation
    severity: high
    detection:
      positivePatterns:
        - "clawback"
      requiredElements:
        - "clawback period"
        - "repayment schedule"
  - id: REQ-WINDFALL
    name: Windfall review trigger
    area: compensation
    severity: medium
    detection:
      positivePatterns:
        - "windfall"
      negativePatterns:
        - "windfall review does not apply"
  - id: REQ-DISPUTE
    name: Dispute escalation path
    area: process
    severity: low
    detection:
      positivePatterns:
        - "dispute (resolution|escalation)"
`

func testResolver(t *testing.T) *CoverageResolver {
	t.Helper()
	matrix, err := ParseRequirementMatrix([]byte(testMatrix))
	require.NoError(t, err)
	return NewCoverageResolver(matrix)
}

func entryByID(t *testing.T, report *CoverageReport, id string) CoverageEntry {
	t.Helper()
	for _, e := range report.Entries {
		if e.RequirementID == id {
			return e
		}
	}
	t.Fatalf("no entry %s", id)
	return CoverageEntry{}
}

func TestCoverageResolver_Grades(t *testing.T) {
	r := testResolver(t)

	content := `
Clawback Period: 12 months from payout. Repayment schedule is quarterly.
Windfall deals above 10x quota credit require review.
`
	report := r.Evaluate(content)
	require.Len(t, report.Entries, 3)

	clawback := entryByID(t, report, "REQ-CLAWBACK")
	assert.Equal(t, "A", clawback.Grade)
	assert.Equal(t, CoverageCovered, clawback.Status)
	assert.NotEmpty(t, clawback.Evidence)

	windfall := entryByID(t, report, "REQ-WINDFALL")
	assert.Equal(t, "A", windfall.Grade)

	dispute := entryByID(t, report, "REQ-DISPUTE")
	assert.Equal(t, "C", dispute.Grade)
	assert.Equal(t, CoverageMissing, dispute.Status)
}

func TestCoverageResolver_PartialCoverage(t *testing.T) {
	r := testResolver(t)

	// Mentions clawback but omits the repayment schedule element.
	report := r.Evaluate("Clawback period: 12 months.")
	clawback := entryByID(t, report, "REQ-CLAWBACK")
	assert.Equal(t, "B", clawback.Grade)
	assert.Equal(t, CoverageNeedsWork, clawback.Status)
}

func TestCoverageResolver_NegativePatternVetoes(t *testing.T) {
	r := testResolver(t)

	report := r.Evaluate("Windfall review does not apply to this plan.")
	windfall := entryByID(t, report, "REQ-WINDFALL")
	assert.Equal(t, "C", windfall.Grade)
	assert.Equal(t, CoverageMissing, windfall.Status)
}

func TestCoverageResolver_CaseInsensitive(t *testing.T) {
	r := testResolver(t)

	report := r.Evaluate("DISPUTE ESCALATION goes to the regional director.")
	dispute := entryByID(t, report, "REQ-DISPUTE")
	assert.Equal(t, "A", dispute.Grade)
}

func TestSummarize(t *testing.T) {
	entries := []CoverageEntry{
		{Status: CoverageCovered},
		{Status: CoverageCovered},
		{Status: CoverageNeedsWork},
		{Status: CoverageMissing},
	}
	s := Summarize(entries)
	assert.Equal(t, 2, s.Covered)
	assert.Equal(t, 1, s.NeedsWork)
	assert.Equal(t, 1, s.Missing)
	// (2 + 0.5) / 4 = 62.5 -> rounds to 63.
	assert.Equal(t, 63, s.CompletenessScore)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Equal(t, 0, s.CompletenessScore)
}

func TestCoverageResolver_CachedEvaluation(t *testing.T) {
	r := testResolver(t)

	content := "clawback period and repayment schedule defined"
	first := r.Evaluate(content)
	second := r.Evaluate(content)
	// Same pointer back from the cache.
	assert.Same(t, first, second)
	assert.Equal(t, 1, r.cache.size())
}

func TestParseRequirementMatrix_Validation(t *testing.T) {
	_, err := ParseRequirementMatrix([]byte(`
requirements:
  - id: R1
    name: one
    detection:
      positivePatterns: ["a"]
  - id: R1
    name: duplicate
    detection:
      positivePatterns: ["b"]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate requirement id")

	_, err = ParseRequirementMatrix([]byte(`
requirements:
  - id: R1
    name: bad regex
    detection:
      positivePatterns: ["["]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad positive pattern")

	_, err = ParseRequirementMatrix([]byte(`
requirements:
  - name: missing id
    detection:
      positivePatterns: ["a"]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no id")
}

func TestEvaluationCache_Eviction(t *testing.T) {
	c := newEvaluationCache(2, 0)

	c.set("a", &CoverageReport{})
	time.Sleep(time.Millisecond)
	c.set("b", &CoverageReport{})
	time.Sleep(time.Millisecond)
	c.set("c", &CoverageReport{})
	assert.Equal(t, 2, c.size())

	// Oldest entry was evicted.
	_, ok := c.get("a")
	assert.False(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
}
