//go:build !cgo || !hyperscan

package matcher

// engineKind identifies the native database format for serialized engines.
const engineKind = "portable"

// Compile builds a portable engine from the pattern set. The set is
// deduplicated and sorted; pattern IDs index into that order. An empty or
// invalid set is rejected as a whole.
func Compile(patterns []string) (Engine, error) {
	normalized := normalize(patterns)
	if err := ValidatePatterns(normalized); err != nil {
		return nil, err
	}
	return newPortable(normalized)
}

// restoreNative is the hyperscan deserialization hook. The portable build
// has no native database format, so cached envelopes are always recompiled
// from their pattern list.
func restoreNative(_ *envelope) (Engine, bool, error) {
	return nil, false, nil
}
