package governance

import (
	"fmt"
	"strconv"
	"strings"
)

// BumpType selects which component of a semantic version to advance.
type BumpType string

const (
	BumpMajor BumpType = "major"
	BumpMinor BumpType = "minor"
	BumpPatch BumpType = "patch"
)

// SemVer is a parsed major.minor.patch version.
type SemVer struct {
	Major int
	Minor int
	Patch int
}

// ParseSemVer parses a "major.minor.patch" string. All three components must
// be present and non-negative.
func ParseSemVer(s string) (SemVer, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return SemVer{}, &InvalidVersionError{Version: s}
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return SemVer{}, &InvalidVersionError{Version: s}
		}
		nums[i] = n
	}
	return SemVer{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

// String renders the version as "major.minor.patch".
func (v SemVer) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0, or 1 comparing v to other, component by component.
func (v SemVer) Compare(other SemVer) int {
	if v.Major != other.Major {
		return cmpInt(v.Major, other.Major)
	}
	if v.Minor != other.Minor {
		return cmpInt(v.Minor, other.Minor)
	}
	return cmpInt(v.Patch, other.Patch)
}

// Bump returns the next version for the given bump type. Major resets minor
// and patch to zero; minor resets patch to zero.
func (v SemVer) Bump(bump BumpType) (SemVer, error) {
	switch bump {
	case BumpMajor:
		return SemVer{Major: v.Major + 1}, nil
	case BumpMinor:
		return SemVer{Major: v.Major, Minor: v.Minor + 1}, nil
	case BumpPatch:
		return SemVer{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}, nil
	default:
		return SemVer{}, fmt.Errorf("unknown bump type %q (expected major, minor, or patch)", bump)
	}
}

// NextVersion computes the next version string from a current version string
// and a bump type. Fails with InvalidVersionError if current is malformed.
func NextVersion(current string, bump BumpType) (string, error) {
	v, err := ParseSemVer(current)
	if err != nil {
		return "", err
	}
	next, err := v.Bump(bump)
	if err != nil {
		return "", err
	}
	return next.String(), nil
}

// CompareVersions compares two version strings under semver ordering.
// Malformed versions sort first so lineage listings stay total.
func CompareVersions(a, b string) int {
	va, errA := ParseSemVer(a)
	vb, errB := ParseSemVer(b)
	if errA != nil && errB != nil {
		return strings.Compare(a, b)
	}
	if errA != nil {
		return -1
	}
	if errB != nil {
		return 1
	}
	return va.Compare(vb)
}

func cmpInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
