// Package matcher compiles a set of filter patterns into a single scanning
// structure and tests byte buffers against all of them in one pass.
//
// Two implementations exist. The default portable engine combines an
// Aho-Corasick pass for literal patterns with regexp2 for the rest and
// needs no CGO. Builds with CGO_ENABLED=1 and -tags=hyperscan get a
// Hyperscan block database instead, which scans in time linear in the
// input and independent of pattern count.
//
// Scanning is an at-most-one-notification contract: Scan reports the first
// hit and stops. Callers that need every occurrence have no use for this
// package.
package matcher

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/c360/gaze/errors"
)

// Match describes the first pattern hit found during a scan.
type Match struct {
	// PatternID is the index of the pattern within the compiled set.
	PatternID int
	// Pattern is the original expression text.
	Pattern string
	// Start and End delimit the matched span as byte offsets into the
	// scanned content. A span of [0,0) means the engine could not
	// recover exact bounds.
	Start int
	End   int
}

// Engine is a compiled pattern set ready for scanning.
type Engine interface {
	// Scan tests content against every pattern and returns the first
	// match found, or nil if nothing matched. Scanning stops at the
	// first hit.
	Scan(content []byte) (*Match, error)

	// Patterns returns the pattern set this engine was compiled from,
	// in compiled order.
	Patterns() []string

	// Close releases engine resources. The engine must not be used
	// after Close.
	Close() error
}

// normalize sorts and deduplicates a pattern set. Compiled pattern IDs are
// indices into this normalized order, which also fixes the on-disk
// serialization order.
func normalize(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ValidatePatterns rejects the whole set if any single pattern is
// unusable. Partial acceptance is never performed: an administrator who
// submits a bad pattern gets the entire batch refused.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if err := validatePattern(p); err != nil {
			return err
		}
	}
	return nil
}

func validatePattern(p string) error {
	if p == "" {
		return errors.WrapInvalid(
			fmt.Errorf("empty pattern"), "Matcher", "ValidatePatterns", "validate pattern")
	}
	if strings.ContainsAny(p, "\n\r") {
		return errors.WrapInvalid(
			fmt.Errorf("pattern %q contains a raw newline", p),
			"Matcher", "ValidatePatterns", "validate pattern")
	}
	if err := compileCheck(p); err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("pattern %q: %w", p, err),
			"Matcher", "ValidatePatterns", "validate pattern")
	}
	return nil
}

// isLiteral reports whether a pattern contains no regex metacharacters and
// can be matched as a plain substring.
func isLiteral(pattern string) bool {
	return regexp.QuoteMeta(pattern) == pattern
}
