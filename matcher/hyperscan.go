//go:build cgo && hyperscan

package matcher

import (
	stderrors "errors"
	"fmt"

	"github.com/dlclark/regexp2"
	"github.com/flier/gohs/hyperscan"

	"github.com/c360/gaze/errors"
)

// stopScan terminates a Hyperscan scan after the first hit. The scan error
// is discarded when a match was recorded.
var stopScan = stderrors.New("first match found")

// hyperscanEngine wraps a compiled Hyperscan block database. Two-stage
// pipeline: Hyperscan locates a hit (fast, end offset only — start-of-match
// tracking is disabled to avoid its memory cost), then a cached regexp2
// finds the exact span for the reported pattern.
type hyperscanEngine struct {
	db       hyperscan.BlockDatabase
	scratch  *hyperscan.Scratch
	patterns []string
	spanRE   map[int]*regexp2.Regexp
}

// newHyperscan compiles the normalized pattern set into a block database.
func newHyperscan(patterns []string) (*hyperscanEngine, error) {
	if len(patterns) == 0 {
		return nil, errors.WrapInvalid(errors.ErrEmptyPatternSet, "Matcher", "Compile", "compile pattern set")
	}

	hsPatterns := make([]*hyperscan.Pattern, len(patterns))
	for i, p := range patterns {
		hp := hyperscan.NewPattern(p, hyperscan.DotAll|hyperscan.MultiLine)
		hp.Id = i
		hsPatterns[i] = hp
	}

	db, err := hyperscan.NewBlockDatabase(hsPatterns...)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Matcher", "Compile", "compile hyperscan database")
	}

	scratch, err := hyperscan.NewScratch(db)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "Matcher", "Compile", "allocate hyperscan scratch")
	}

	return &hyperscanEngine{
		db:       db,
		scratch:  scratch,
		patterns: patterns,
		spanRE:   make(map[int]*regexp2.Regexp),
	}, nil
}

// restoreHyperscan rebuilds an engine from a serialized database blob.
func restoreHyperscan(blob []byte, patterns []string) (*hyperscanEngine, error) {
	db, err := hyperscan.UnmarshalBlockDatabase(blob)
	if err != nil {
		return nil, err
	}

	scratch, err := hyperscan.NewScratch(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &hyperscanEngine{
		db:       db,
		scratch:  scratch,
		patterns: patterns,
		spanRE:   make(map[int]*regexp2.Regexp),
	}, nil
}

// Scan reports the first pattern hit, stopping the database scan early.
func (e *hyperscanEngine) Scan(content []byte) (*Match, error) {
	var hit *Match

	onMatch := func(id uint, _, to uint64, _ uint, _ interface{}) error {
		if int(id) >= len(e.patterns) {
			return fmt.Errorf("invalid pattern ID from hyperscan: %d", id)
		}
		hit = &Match{
			PatternID: int(id),
			Pattern:   e.patterns[id],
			End:       int(to),
		}
		return stopScan
	}

	if err := e.db.Scan(content, e.scratch, onMatch, nil); err != nil && hit == nil {
		return nil, errors.Wrap(err, "Matcher", "Scan", "hyperscan scan")
	}
	if hit == nil {
		return nil, nil
	}

	e.recoverSpan(content, hit)
	return hit, nil
}

// recoverSpan fills in exact match bounds using regexp2. Best effort: on
// any failure the hit keeps the Hyperscan end offset and a zero start.
func (e *hyperscanEngine) recoverSpan(content []byte, hit *Match) {
	re, ok := e.spanRE[hit.PatternID]
	if !ok {
		compiled, err := compileRegex(hit.Pattern)
		if err != nil {
			return
		}
		e.spanRE[hit.PatternID] = compiled
		re = compiled
	}

	text := string(content)
	m, err := re.FindStringMatch(text)
	if err != nil || m == nil {
		return
	}
	hit.Start = runeToByteOffset(text, m.Index)
	hit.End = runeToByteOffset(text, m.Index+m.Length)
}

// Patterns returns the compiled pattern set in ID order.
func (e *hyperscanEngine) Patterns() []string {
	return e.patterns
}

// marshalDB serializes the compiled database for the cache file.
func (e *hyperscanEngine) marshalDB() ([]byte, bool) {
	blob, err := e.db.Marshal()
	if err != nil {
		return nil, false
	}
	return blob, true
}

// Close frees the scratch space and database.
func (e *hyperscanEngine) Close() error {
	if e.scratch != nil {
		if err := e.scratch.Free(); err != nil {
			return errors.Wrap(err, "Matcher", "Close", "free scratch")
		}
		e.scratch = nil
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			return errors.Wrap(err, "Matcher", "Close", "close database")
		}
		e.db = nil
	}
	return nil
}
