package matcher

import (
	"bytes"
	"fmt"
	"time"

	"github.com/cloudflare/ahocorasick"
	"github.com/dlclark/regexp2"

	"github.com/c360/gaze/errors"
)

// Backstop against catastrophic backtracking when a pattern falls outside
// regexp2's RE2 mode.
const regexTimeout = 5 * time.Second

// portableEngine matches literal patterns with one Aho-Corasick pass and
// the remaining patterns with regexp2. Not safe for concurrent use; the
// service's single dispatch loop is the only caller.
type portableEngine struct {
	patterns []string

	// Literal fast path
	literalMatcher *ahocorasick.Matcher
	literals       []string // literal text per Aho-Corasick index
	literalIDs     []int    // pattern ID per Aho-Corasick index

	// Regex slow path, in pattern-ID order
	regexes  []*regexp2.Regexp
	regexIDs []int
}

// newPortable compiles the normalized pattern set into a portable engine.
func newPortable(patterns []string) (*portableEngine, error) {
	if len(patterns) == 0 {
		return nil, errors.WrapInvalid(errors.ErrEmptyPatternSet, "Matcher", "Compile", "compile pattern set")
	}

	e := &portableEngine{patterns: patterns}

	for id, p := range patterns {
		if isLiteral(p) {
			e.literals = append(e.literals, p)
			e.literalIDs = append(e.literalIDs, id)
			continue
		}
		re, err := compileRegex(p)
		if err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("pattern %q: %w", p, err), "Matcher", "Compile", "compile pattern")
		}
		e.regexes = append(e.regexes, re)
		e.regexIDs = append(e.regexIDs, id)
	}

	if len(e.literals) > 0 {
		e.literalMatcher = ahocorasick.NewStringMatcher(e.literals)
	}

	return e, nil
}

// compileRegex prefers RE2 mode (no backtracking) and falls back to the
// default mode for patterns using features RE2 rejects, bounded by a match
// timeout.
func compileRegex(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.RE2|regexp2.Multiline)
	if err != nil {
		re, err = regexp2.Compile(pattern, regexp2.Multiline)
		if err != nil {
			return nil, err
		}
	}
	re.MatchTimeout = regexTimeout
	return re, nil
}

// compileCheck validates a single pattern against the portable grammar.
func compileCheck(pattern string) error {
	if isLiteral(pattern) {
		return nil
	}
	_, err := compileRegex(pattern)
	return err
}

// Scan returns the first literal or regex hit, or nil.
func (e *portableEngine) Scan(content []byte) (*Match, error) {
	// Literal pass first: one traversal regardless of literal count.
	if e.literalMatcher != nil {
		if hits := e.literalMatcher.Match(content); len(hits) > 0 {
			idx := hits[0]
			lit := e.literals[idx]
			start := bytes.Index(content, []byte(lit))
			return &Match{
				PatternID: e.literalIDs[idx],
				Pattern:   lit,
				Start:     start,
				End:       start + len(lit),
			}, nil
		}
	}

	if len(e.regexes) == 0 {
		return nil, nil
	}

	text := string(content)
	for i, re := range e.regexes {
		m, err := re.FindStringMatch(text)
		if err != nil {
			// Timeout or internal failure on one pattern fails the
			// scan; the caller treats it as a non-match.
			return nil, errors.Wrap(err, "Matcher", "Scan", fmt.Sprintf("match pattern %q", e.patterns[e.regexIDs[i]]))
		}
		if m != nil {
			// regexp2 reports rune offsets; the wire contract is bytes.
			start := runeToByteOffset(text, m.Index)
			end := runeToByteOffset(text, m.Index+m.Length)
			return &Match{
				PatternID: e.regexIDs[i],
				Pattern:   e.patterns[e.regexIDs[i]],
				Start:     start,
				End:       end,
			}, nil
		}
	}

	return nil, nil
}

// runeToByteOffset converts a rune index into a byte offset within s.
func runeToByteOffset(s string, runeIdx int) int {
	if runeIdx <= 0 {
		return 0
	}
	n := 0
	for byteIdx := range s {
		if n == runeIdx {
			return byteIdx
		}
		n++
	}
	return len(s)
}

// Patterns returns the compiled pattern set in ID order.
func (e *portableEngine) Patterns() []string {
	return e.patterns
}

// Close is a no-op for the portable engine.
func (e *portableEngine) Close() error {
	return nil
}
