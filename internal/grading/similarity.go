package grading

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
)

// normalizeText folds case and collapses whitespace for comparison.
// A Caser is stateful, so one is created per call.
func normalizeText(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

// Similarity returns 1 - levenshtein(a, b) / max(len(a), len(b)) over the
// case-folded, whitespace-collapsed runes of a and b. Two empty strings are
// identical.
func Similarity(a, b string) float64 {
	ra := []rune(normalizeText(a))
	rb := []rune(normalizeText(b))
	longest := max(len(ra), len(rb))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(longest)
}

func levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Credit is the outcome band of a similarity comparison.
type Credit int

const (
	NoCredit Credit = iota
	PartialCredit
	FullCredit
)

// Policy turns a similarity into marks.
type Policy struct {
	FullThreshold    float64 // similarity at or above this earns full marks
	PartialThreshold float64 // similarity at or above this earns partial marks; 0 disables the band
	PartialFraction  float64 // share of max marks for the partial band, floored
}

var (
	// BandedPolicy awards full marks at 0.85 and half marks from 0.60.
	BandedPolicy = Policy{FullThreshold: 0.85, PartialThreshold: 0.60, PartialFraction: 0.5}
	// FlatPolicy is all-or-nothing at 0.65.
	FlatPolicy = Policy{FullThreshold: 0.65}
)

// PolicyByName returns the named policy with optional threshold overrides.
// Zero overrides keep the policy defaults.
func PolicyByName(name string, full, partial float64) (Policy, error) {
	var p Policy
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "banded":
		p = BandedPolicy
	case "flat":
		p = FlatPolicy
	default:
		return Policy{}, fmt.Errorf("unknown fill-blank policy %q (want banded or flat)", name)
	}
	if full > 0 {
		p.FullThreshold = full
	}
	if partial > 0 && p.PartialThreshold > 0 {
		p.PartialThreshold = partial
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

// Validate checks that thresholds lie in (0, 1] and are ordered.
func (p Policy) Validate() error {
	if p.FullThreshold <= 0 || p.FullThreshold > 1 {
		return fmt.Errorf("full threshold %v out of range (0, 1]", p.FullThreshold)
	}
	if p.PartialThreshold < 0 || (p.PartialThreshold > 0 && p.PartialThreshold >= p.FullThreshold) {
		return fmt.Errorf("partial threshold %v must be below full threshold %v", p.PartialThreshold, p.FullThreshold)
	}
	if p.PartialFraction < 0 || p.PartialFraction > 1 {
		return fmt.Errorf("partial fraction %v out of range [0, 1]", p.PartialFraction)
	}
	return nil
}

// Apply maps a similarity to marks out of maxMarks.
func (p Policy) Apply(similarity float64, maxMarks int) (float64, Credit) {
	switch {
	case similarity >= p.FullThreshold:
		return float64(maxMarks), FullCredit
	case p.PartialThreshold > 0 && similarity >= p.PartialThreshold:
		return math.Floor(float64(maxMarks) * p.PartialFraction), PartialCredit
	default:
		return 0, NoCredit
	}
}
