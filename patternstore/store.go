// Package patternstore owns the two on-disk artifacts behind the scanning
// service: the plain-text expression list and the serialized compiled
// matcher. Both files are only ever replaced atomically, so a crash
// mid-write leaves the previous complete content in place.
package patternstore

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/c360/gaze/errors"
	"github.com/c360/gaze/matcher"
)

const (
	// ListFile holds one pattern per line and is the source of truth
	// across restarts.
	ListFile = "patterns.list"
	// CacheFile holds the serialized compiled matcher. Purely an
	// optimization; a bad cache falls back to recompiling ListFile.
	CacheFile = "patterns.db"
)

// Store manages the pattern set's durable state under a base directory.
type Store struct {
	dir       string
	listPath  string
	cachePath string
	logger    *slog.Logger
}

// New creates the base directory if needed and returns a store over it.
func New(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "PatternStore", "New", "validate data directory")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "PatternStore", "New", "create data directory")
	}
	return &Store{
		dir:       dir,
		listPath:  filepath.Join(dir, ListFile),
		cachePath: filepath.Join(dir, CacheFile),
		logger:    logger.With("component", "patternstore"),
	}, nil
}

// Load reads the on-disk state at startup. The expression list is
// authoritative; the cached matcher is used only when it agrees with the
// list. Every failure on the cache or compile path degrades to an absent
// matcher rather than an error, so the service always reaches Ready.
func (s *Store) Load() (matcher.Engine, []string) {
	patterns := s.readList()
	if len(patterns) == 0 {
		s.logger.Info("no active patterns on disk", "dir", s.dir)
		return nil, patterns
	}

	if eng := s.loadCache(patterns); eng != nil {
		s.logger.Info("restored matcher from cache", "patterns", len(patterns))
		return eng, patterns
	}

	eng, err := matcher.Compile(patterns)
	if err != nil {
		s.logger.Error("pattern list failed to compile, scanning disabled",
			"error", err, "patterns", len(patterns))
		return nil, patterns
	}
	s.logger.Info("compiled matcher from pattern list", "patterns", len(patterns))
	return eng, patterns
}

// Update applies an add/remove delta to the current set and persists the
// result. All or nothing: a compile or persist failure returns an error
// with no on-disk or returned-state change, so the caller keeps its
// previous matcher. An empty resulting set persists an empty list and
// returns an absent matcher.
func (s *Store) Update(current, add, remove []string) (matcher.Engine, []string, error) {
	next := applyDelta(current, add, remove)

	if len(next) == 0 {
		if err := atomicWrite(s.listPath, nil); err != nil {
			return nil, nil, err
		}
		// Stale cache must not resurrect cleared patterns on restart.
		if err := os.Remove(s.cachePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove matcher cache", "error", err)
		}
		s.logger.Info("pattern set cleared")
		return nil, next, nil
	}

	eng, err := matcher.Compile(next)
	if err != nil {
		return nil, nil, err
	}

	blob, err := matcher.Marshal(eng)
	if err != nil {
		eng.Close()
		return nil, nil, err
	}
	if err := atomicWrite(s.cachePath, blob); err != nil {
		eng.Close()
		return nil, nil, err
	}
	if err := atomicWrite(s.listPath, encodeList(eng.Patterns())); err != nil {
		eng.Close()
		return nil, nil, err
	}

	s.logger.Info("pattern set updated",
		"patterns", len(eng.Patterns()), "added", len(add), "removed", len(remove))
	return eng, eng.Patterns(), nil
}

// readList parses the expression-list file. Missing file means empty set.
func (s *Store) readList() []string {
	data, err := os.ReadFile(s.listPath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Error("failed to read pattern list", "error", err, "path", s.listPath)
		}
		return []string{}
	}

	out := []string{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	sort.Strings(out)
	return out
}

// loadCache attempts the fast path. Returns nil on any failure or when
// the cached engine disagrees with the authoritative list.
func (s *Store) loadCache(patterns []string) matcher.Engine {
	data, err := os.ReadFile(s.cachePath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read matcher cache", "error", err)
		}
		return nil
	}

	eng, err := matcher.Unmarshal(data)
	if err != nil {
		s.logger.Warn("matcher cache unusable, recompiling", "error", err)
		return nil
	}

	if !sameSet(eng.Patterns(), patterns) {
		s.logger.Warn("matcher cache out of sync with pattern list, recompiling")
		eng.Close()
		return nil
	}
	return eng
}

// applyDelta computes (current ∪ add) − remove as a sorted set.
func applyDelta(current, add, remove []string) []string {
	set := make(map[string]struct{}, len(current)+len(add))
	for _, p := range current {
		set[p] = struct{}{}
	}
	for _, p := range add {
		set[p] = struct{}{}
	}
	for _, p := range remove {
		delete(set, p)
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func encodeList(patterns []string) []byte {
	if len(patterns) == 0 {
		return nil
	}
	return []byte(strings.Join(patterns, "\n") + "\n")
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
