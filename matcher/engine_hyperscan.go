//go:build cgo && hyperscan

package matcher

// engineKind identifies the native database format for serialized engines.
const engineKind = "hyperscan"

// Compile builds a Hyperscan engine from the given pattern set. Patterns
// are deduplicated and sorted so IDs are stable across recompiles.
func Compile(patterns []string) (Engine, error) {
	normalized := normalize(patterns)
	if err := ValidatePatterns(normalized); err != nil {
		return nil, err
	}
	return newHyperscan(normalized)
}

// restoreNative deserializes a cached Hyperscan database when the envelope
// carries one. Returns false when the blob is absent or unusable, in which
// case the caller recompiles from the envelope's pattern list.
func restoreNative(env *envelope) (Engine, bool, error) {
	if env.Kind != engineKind || len(env.Database) == 0 {
		return nil, false, nil
	}
	eng, err := restoreHyperscan(env.Database, env.Patterns)
	if err != nil {
		return nil, false, nil
	}
	return eng, true, nil
}
