package governance

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Requirement is one row of the requirement matrix. Detection patterns are
// matched against artifact content to grade coverage.
type Requirement struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Area      string    `yaml:"area,omitempty" json:"area,omitempty"`
	Severity  string    `yaml:"severity,omitempty" json:"severity,omitempty"`
	Detection Detection `yaml:"detection" json:"detection"`
}

// Detection describes how a requirement is recognized in artifact content.
// PositivePatterns are regular expressions; at least one must match for the
// requirement to count as addressed. NegativePatterns veto a match (for
// example a "not applicable" carve-out). RequiredElements are literal phrases
// that must each appear for full coverage; partial presence grades B.
type Detection struct {
	PositivePatterns []string `yaml:"positivePatterns,omitempty" json:"positivePatterns,omitempty"`
	NegativePatterns []string `yaml:"negativePatterns,omitempty" json:"negativePatterns,omitempty"`
	RequiredElements []string `yaml:"requiredElements,omitempty" json:"requiredElements,omitempty"`
}

// RequirementMatrix is the loaded set of requirements with compiled patterns.
type RequirementMatrix struct {
	Requirements []Requirement

	positive map[string][]*regexp.Regexp
	negative map[string][]*regexp.Regexp
	digest   string
}

type matrixFile struct {
	Requirements []Requirement `yaml:"requirements"`
}

// LoadRequirementMatrix reads a requirement matrix from a YAML file and
// compiles its detection patterns. Patterns are compiled case-insensitive.
func LoadRequirementMatrix(path string) (*RequirementMatrix, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read requirement matrix %s: %w", path, err)
	}
	return ParseRequirementMatrix(data)
}

// ParseRequirementMatrix parses and compiles a requirement matrix from YAML.
func ParseRequirementMatrix(data []byte) (*RequirementMatrix, error) {
	var file matrixFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse requirement matrix: %w", err)
	}

	m := &RequirementMatrix{
		Requirements: file.Requirements,
		positive:     make(map[string][]*regexp.Regexp),
		negative:     make(map[string][]*regexp.Regexp),
	}

	seen := make(map[string]bool)
	for _, req := range file.Requirements {
		if req.ID == "" {
			return nil, fmt.Errorf("requirement %q has no id", req.Name)
		}
		if seen[req.ID] {
			return nil, fmt.Errorf("duplicate requirement id %q", req.ID)
		}
		seen[req.ID] = true

		for _, p := range req.Detection.PositivePatterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("requirement %s: bad positive pattern %q: %w", req.ID, p, err)
			}
			m.positive[req.ID] = append(m.positive[req.ID], re)
		}
		for _, p := range req.Detection.NegativePatterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("requirement %s: bad negative pattern %q: %w", req.ID, p, err)
			}
			m.negative[req.ID] = append(m.negative[req.ID], re)
		}
	}

	sum := sha256.Sum256(data)
	m.digest = hex.EncodeToString(sum[:])
	return m, nil
}

// Digest identifies the matrix content; used as part of cache keys.
func (m *RequirementMatrix) Digest() string { return m.digest }

// CoverageReport is the result of evaluating one artifact's content against
// a requirement matrix.
type CoverageReport struct {
	Entries []CoverageEntry `json:"entries"`
	Summary CoverageSummary `json:"summary"`
}

// CoverageResolver grades artifact content against a requirement matrix.
// Evaluations are pure over (matrix digest, content), so results are cached.
type CoverageResolver struct {
	matrix *RequirementMatrix
	cache  *evaluationCache
}

// NewCoverageResolver creates a resolver over the given matrix. Results are
// cached for repeated evaluations of unchanged content.
func NewCoverageResolver(matrix *RequirementMatrix) *CoverageResolver {
	return &CoverageResolver{
		matrix: matrix,
		cache:  newEvaluationCache(256, 10*time.Minute),
	}
}

// Evaluate grades the given content against every requirement in the matrix.
// Grading per requirement:
//
//	A (COVERED)    - a positive pattern matches, no negative pattern matches,
//	                 and every required element is present
//	B (NEEDS_WORK) - a positive pattern matches but some required elements
//	                 are missing
//	C (MISSING)    - no positive pattern matches, or a negative pattern vetoes
func (r *CoverageResolver) Evaluate(content string) *CoverageReport {
	sum := sha256.Sum256([]byte(content))
	key := r.matrix.digest + ":" + hex.EncodeToString(sum[:])
	if report, ok := r.cache.get(key); ok {
		return report
	}

	lower := strings.ToLower(content)
	entries := make([]CoverageEntry, 0, len(r.matrix.Requirements))
	for _, req := range r.matrix.Requirements {
		entries = append(entries, r.evaluateOne(req, content, lower))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RequirementID < entries[j].RequirementID
	})

	report := &CoverageReport{
		Entries: entries,
		Summary: Summarize(entries),
	}
	r.cache.set(key, report)
	return report
}

func (r *CoverageResolver) evaluateOne(req Requirement, content, lower string) CoverageEntry {
	entry := CoverageEntry{
		RequirementID: req.ID,
		Name:          req.Name,
		Area:          req.Area,
		Severity:      req.Severity,
	}

	for _, re := range r.matrix.negative[req.ID] {
		if re.MatchString(content) {
			entry.Grade = "C"
			entry.Status = CoverageMissing
			return entry
		}
	}

	matched := len(r.matrix.positive[req.ID]) == 0 && len(req.Detection.RequiredElements) > 0
	var evidence []string
	for _, re := range r.matrix.positive[req.ID] {
		if loc := re.FindString(content); loc != "" {
			matched = true
			evidence = append(evidence, loc)
		}
	}
	if !matched {
		entry.Grade = "C"
		entry.Status = CoverageMissing
		return entry
	}

	missing := 0
	for _, elem := range req.Detection.RequiredElements {
		if strings.Contains(lower, strings.ToLower(elem)) {
			evidence = append(evidence, elem)
		} else {
			missing++
		}
	}

	entry.Evidence = evidence
	if missing > 0 {
		entry.Grade = "B"
		entry.Status = CoverageNeedsWork
	} else {
		entry.Grade = "A"
		entry.Status = CoverageCovered
	}
	return entry
}

// Summarize aggregates entries into headline numbers. The completeness score
// counts a COVERED requirement as full credit and NEEDS_WORK as half.
func Summarize(entries []CoverageEntry) CoverageSummary {
	var s CoverageSummary
	for _, e := range entries {
		switch e.Status {
		case CoverageCovered:
			s.Covered++
		case CoverageNeedsWork:
			s.NeedsWork++
		default:
			s.Missing++
		}
	}
	total := len(entries)
	if total > 0 {
		score := (float64(s.Covered) + 0.5*float64(s.NeedsWork)) / float64(total) * 100
		s.CompletenessScore = int(score + 0.5)
	}
	return s
}
