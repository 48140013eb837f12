package matcher

import (
	"encoding/json"
	"fmt"

	"github.com/c360/gaze/errors"
)

const (
	envelopeMagic   = "gaze-matcher"
	envelopeVersion = 1
)

// nativeMarshaler is implemented by engines that can serialize their
// compiled database. The portable engine cannot; its envelope carries
// patterns only and Unmarshal recompiles.
type nativeMarshaler interface {
	marshalDB() ([]byte, bool)
}

// envelope is the on-disk form of a compiled engine. The pattern list is
// always present so any build can restore the engine by recompiling; the
// database blob is an optimization usable only by the build kind that
// produced it.
type envelope struct {
	Magic    string   `json:"magic"`
	Version  int      `json:"version"`
	Kind     string   `json:"kind"`
	Patterns []string `json:"patterns"`
	Database []byte   `json:"database,omitempty"`
}

// Marshal serializes an engine for the pattern cache file.
func Marshal(eng Engine) ([]byte, error) {
	env := envelope{
		Magic:    envelopeMagic,
		Version:  envelopeVersion,
		Kind:     engineKind,
		Patterns: eng.Patterns(),
	}
	if nm, ok := eng.(nativeMarshaler); ok {
		if blob, ok := nm.marshalDB(); ok {
			env.Database = blob
		}
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, errors.Wrap(err, "Matcher", "Marshal", "encode engine envelope")
	}
	return data, nil
}

// Unmarshal restores an engine from a serialized envelope. A malformed
// envelope returns ErrInvalidCache so callers can fall back to compiling
// from the authoritative pattern list.
func Unmarshal(data []byte) (Engine, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidCache, err)
	}
	if env.Magic != envelopeMagic {
		return nil, fmt.Errorf("%w: bad magic %q", errors.ErrInvalidCache, env.Magic)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", errors.ErrInvalidCache, env.Version)
	}
	if len(env.Patterns) == 0 {
		return nil, fmt.Errorf("%w: empty pattern list", errors.ErrInvalidCache)
	}

	if eng, ok, err := restoreNative(&env); err != nil {
		return nil, err
	} else if ok {
		return eng, nil
	}

	// Envelope from a different build kind, or no native blob. Recompile.
	eng, err := Compile(env.Patterns)
	if err != nil {
		return nil, fmt.Errorf("%w: recompile failed: %v", errors.ErrInvalidCache, err)
	}
	return eng, nil
}
