package governance

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// GovernanceConfig holds runtime governance configuration: the decision
// threshold table, per-decision-type step sequences, committee metadata,
// escalation tiers, and SLA tuning. It is injected into the resolver and
// workflow at construction; never a process-wide singleton.
type GovernanceConfig struct {
	Committees []CommitteeConfig     `yaml:"committees" json:"committees"`
	Thresholds []ThresholdConfig     `yaml:"thresholds" json:"thresholds"`
	Sequences  map[string][]StepSpec `yaml:"sequences" json:"sequences"`
	Escalation map[string]string     `yaml:"escalation" json:"escalation"`
	SLA        SLAConfig             `yaml:"sla" json:"sla"`
}

// CommitteeConfig describes a governance committee.
type CommitteeConfig struct {
	Name              string   `yaml:"name" json:"name"`
	Acronym           string   `yaml:"acronym" json:"acronym"`
	Type              string   `yaml:"type" json:"type"` // PRIMARY or REVIEW_BOARD
	Members           []string `yaml:"members,omitempty" json:"members,omitempty"`
	QuorumRequirement int      `yaml:"quorumRequirement,omitempty" json:"quorumRequirement,omitempty"`
	MeetingCadence    string   `yaml:"meetingCadence,omitempty" json:"meetingCadence,omitempty"`
}

// ThresholdConfig is the YAML shape of one decision threshold row. Amount
// bounds are half-open [amountMin, amountMax); a nil max means unbounded
// above, a nil min means from zero.
type ThresholdConfig struct {
	DecisionType string   `yaml:"decisionType" json:"decisionType"`
	AmountMin    *float64 `yaml:"amountMin,omitempty" json:"amountMin,omitempty"`
	AmountMax    *float64 `yaml:"amountMax,omitempty" json:"amountMax,omitempty"`
	Authority    string   `yaml:"authority" json:"authority"`
	TimelineDays int      `yaml:"timelineDays" json:"timelineDays"`
}

// StepSpec defines one step of a decision type's approval sequence. An empty
// Authority means the step's authority is resolved from the threshold table
// at request creation time.
type StepSpec struct {
	Name      string `yaml:"name" json:"name"`
	Authority string `yaml:"authority,omitempty" json:"authority,omitempty"`
}

// SLAConfig tunes derived SLA status. AtRiskFraction is the trailing share
// of the window that counts as AT_RISK (0.2 = last 20%).
type SLAConfig struct {
	AtRiskFraction float64 `yaml:"atRiskFraction" json:"atRiskFraction"`
}

// DecisionThreshold is the resolved, decimal-typed threshold row used by the
// AuthorityResolver. Nil bounds mean unset.
type DecisionThreshold struct {
	DecisionType string           `json:"decisionType"`
	AmountMin    *decimal.Decimal `json:"amountMin,omitempty"`
	AmountMax    *decimal.Decimal `json:"amountMax,omitempty"`
	Authority    string           `json:"authority"`
	TimelineDays int              `json:"timelineDays"`
}

// LoadGovernanceConfig loads governance configuration from a YAML file.
// If the file does not exist, default configuration is returned.
func LoadGovernanceConfig(path string) (*GovernanceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultGovernanceConfig(), nil
		}
		return nil, fmt.Errorf("read governance config: %w", err)
	}

	var cfg GovernanceConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse governance config: %w", err)
	}
	if cfg.SLA.AtRiskFraction <= 0 || cfg.SLA.AtRiskFraction >= 1 {
		cfg.SLA.AtRiskFraction = 0.2
	}

	return &cfg, nil
}

// DefaultGovernanceConfig returns the default configuration: the SGCC and
// CRB committees with their standard decision thresholds and the standard
// multi-step sequences.
func DefaultGovernanceConfig() *GovernanceConfig {
	f := func(v float64) *float64 { return &v }
	return &GovernanceConfig{
		Committees: []CommitteeConfig{
			{
				Name:              "Sales Compensation Governance Committee",
				Acronym:           "SGCC",
				Type:              "PRIMARY",
				QuorumRequirement: 5,
				MeetingCadence:    "Monthly",
			},
			{
				Name:              "Compensation Review Board",
				Acronym:           "CRB",
				Type:              "REVIEW_BOARD",
				QuorumRequirement: 3,
				MeetingCadence:    "Quarterly",
			},
		},
		Thresholds: []ThresholdConfig{
			{DecisionType: string(DecisionSPIFApproval), AmountMin: f(0), AmountMax: f(50000), Authority: "SGCC", TimelineDays: 5},
			{DecisionType: string(DecisionSPIFApproval), AmountMin: f(50000), AmountMax: f(250000), Authority: "SGCC+CFO", TimelineDays: 10},
			{DecisionType: string(DecisionSPIFApproval), AmountMin: f(250000), Authority: "SGCC+CEO", TimelineDays: 15},
			{DecisionType: string(DecisionExceptionRequest), AmountMin: f(0), AmountMax: f(5000), Authority: "Manager", TimelineDays: 5},
			{DecisionType: string(DecisionExceptionRequest), AmountMin: f(5000), AmountMax: f(25000), Authority: "Regional", TimelineDays: 10},
			{DecisionType: string(DecisionExceptionRequest), AmountMin: f(25000), Authority: "CRB", TimelineDays: 15},
			{DecisionType: string(DecisionPolicyChange), Authority: "SGCC+Legal", TimelineDays: 30},
			{DecisionType: string(DecisionWindfallReview), AmountMin: f(0), Authority: "CRB", TimelineDays: 10},
			{DecisionType: string(DecisionClawbackApproval), AmountMin: f(0), Authority: "SGCC+CFO", TimelineDays: 15},
		},
		Sequences: map[string][]StepSpec{
			string(DecisionPolicyChange): {
				{Name: "Stakeholder Review", Authority: "SGCC"},
				{Name: "Legal Review", Authority: "Legal"},
				{Name: "Committee Approval"},
			},
			string(DecisionSPIFApproval): {
				{Name: "Committee Approval"},
			},
			string(DecisionExceptionRequest): {
				{Name: "Committee Approval"},
			},
			string(DecisionWindfallReview): {
				{Name: "Deal Desk Review", Authority: "Deal Desk"},
				{Name: "Committee Approval"},
			},
			string(DecisionClawbackApproval): {
				{Name: "Finance Review", Authority: "Finance"},
				{Name: "Committee Approval"},
			},
		},
		Escalation: map[string]string{
			"Manager":  "Regional",
			"Regional": "CRB",
			"SGCC":     "SGCC+CFO",
			"SGCC+CFO": "SGCC+CEO",
		},
		SLA: SLAConfig{AtRiskFraction: 0.2},
	}
}

// ResolveThresholds converts the YAML threshold rows into decimal-typed
// DecisionThreshold rows, preserving configuration order. It validates that
// ranges belonging to the same authority do not overlap for a decision type.
func (c *GovernanceConfig) ResolveThresholds() ([]DecisionThreshold, error) {
	out := make([]DecisionThreshold, 0, len(c.Thresholds))
	for _, t := range c.Thresholds {
		row := DecisionThreshold{
			DecisionType: t.DecisionType,
			Authority:    t.Authority,
			TimelineDays: t.TimelineDays,
		}
		if t.AmountMin != nil {
			d := decimal.NewFromFloat(*t.AmountMin)
			row.AmountMin = &d
		}
		if t.AmountMax != nil {
			d := decimal.NewFromFloat(*t.AmountMax)
			row.AmountMax = &d
		}
		if row.AmountMin != nil && row.AmountMax != nil && !row.AmountMin.LessThan(*row.AmountMax) {
			return nil, fmt.Errorf("threshold %s/%s: amountMin must be below amountMax", t.DecisionType, t.Authority)
		}
		out = append(out, row)
	}

	for i := range out {
		for j := i + 1; j < len(out); j++ {
			a, b := out[i], out[j]
			if a.DecisionType != b.DecisionType || a.Authority != b.Authority {
				continue
			}
			if rangesOverlap(a, b) {
				return nil, fmt.Errorf("threshold %s/%s: overlapping ranges for the same authority", a.DecisionType, a.Authority)
			}
		}
	}

	return out, nil
}

// rangesOverlap reports whether two half-open [min, max) ranges intersect.
// A nil min counts as zero; a nil max counts as unbounded.
func rangesOverlap(a, b DecisionThreshold) bool {
	aMin, bMin := decimal.Zero, decimal.Zero
	if a.AmountMin != nil {
		aMin = *a.AmountMin
	}
	if b.AmountMin != nil {
		bMin = *b.AmountMin
	}
	if a.AmountMax != nil && a.AmountMax.LessThanOrEqual(bMin) {
		return false
	}
	if b.AmountMax != nil && b.AmountMax.LessThanOrEqual(aMin) {
		return false
	}
	return true
}
