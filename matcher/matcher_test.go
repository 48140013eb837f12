package matcher

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/gaze/errors"
)

func TestCompileRejectsEmptySet(t *testing.T) {
	_, err := Compile(nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = Compile([]string{})
	require.Error(t, err)
}

func TestCompileRejectsWholeBatch(t *testing.T) {
	// One bad pattern poisons the entire set.
	_, err := Compile([]string{"good", "als[o-good", "fine"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestValidatePatterns(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		wantErr  bool
	}{
		{"literals", []string{"badword", "other"}, false},
		{"regex", []string{`bad\s+word`, `(?i)slur`}, false},
		{"empty pattern", []string{"ok", ""}, true},
		{"raw newline", []string{"bad\nword"}, true},
		{"carriage return", []string{"bad\rword"}, true},
		{"unbalanced bracket", []string{"[abc"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePatterns(tt.patterns)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestScanLiteralHit(t *testing.T) {
	eng, err := Compile([]string{"badword"})
	require.NoError(t, err)
	defer eng.Close()

	m, err := eng.Scan([]byte("this contains badword here"))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "badword", m.Pattern)
	assert.Equal(t, 14, m.Start)
	assert.Equal(t, 21, m.End)
}

func TestScanCleanContent(t *testing.T) {
	eng, err := Compile([]string{"badword", `evil\d+`})
	require.NoError(t, err)
	defer eng.Close()

	m, err := eng.Scan([]byte("this is clean text"))
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestScanRegexHit(t *testing.T) {
	eng, err := Compile([]string{`bad\s+word`})
	require.NoError(t, err)
	defer eng.Close()

	m, err := eng.Scan([]byte("a bad  word indeed"))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, `bad\s+word`, m.Pattern)
	assert.Equal(t, 2, m.Start)
	assert.Equal(t, 11, m.End)
}

func TestScanMultibyteOffsets(t *testing.T) {
	eng, err := Compile([]string{`bad\w*`})
	require.NoError(t, err)
	defer eng.Close()

	// Two three-byte runes precede the hit.
	content := "日本 badness"
	m, err := eng.Scan([]byte(content))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, []byte("badness"), []byte(content)[m.Start:m.End])
}

func TestScanEmptyContent(t *testing.T) {
	eng, err := Compile([]string{"badword"})
	require.NoError(t, err)
	defer eng.Close()

	m, err := eng.Scan(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestScanFirstHitOnly(t *testing.T) {
	eng, err := Compile([]string{"alpha", "beta"})
	require.NoError(t, err)
	defer eng.Close()

	m, err := eng.Scan([]byte("beta then alpha then beta"))
	require.NoError(t, err)
	require.NotNil(t, m)
	// Exactly one match comes back no matter how many occurrences exist.
	assert.Contains(t, []string{"alpha", "beta"}, m.Pattern)
}

func TestNormalizeDedupesAndSorts(t *testing.T) {
	got := normalize([]string{"zeta", "alpha", "zeta", "mid"})
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, got)
}

func TestCompileStableIDs(t *testing.T) {
	// Same set in different submission order compiles to the same
	// pattern ordering.
	a, err := Compile([]string{"zz", "aa"})
	require.NoError(t, err)
	defer a.Close()
	b, err := Compile([]string{"aa", "zz"})
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, a.Patterns(), b.Patterns())
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	eng, err := Compile([]string{"badword", `evil\d+`})
	require.NoError(t, err)
	defer eng.Close()

	data, err := Marshal(eng)
	require.NoError(t, err)

	restored, err := Unmarshal(data)
	require.NoError(t, err)
	defer restored.Close()

	assert.Equal(t, eng.Patterns(), restored.Patterns())

	m, err := restored.Scan([]byte("has badword inside"))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "badword", m.Pattern)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	_, err := Unmarshal([]byte("not an envelope"))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidCache))
}

func TestUnmarshalRejectsWrongMagic(t *testing.T) {
	_, err := Unmarshal([]byte(`{"magic":"other","version":1,"kind":"portable","patterns":["x"]}`))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidCache))
}

func TestUnmarshalRejectsEmptyPatterns(t *testing.T) {
	_, err := Unmarshal([]byte(`{"magic":"gaze-matcher","version":1,"kind":"portable","patterns":[]}`))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrInvalidCache))
}

func TestIsLiteral(t *testing.T) {
	assert.True(t, isLiteral("plainword"))
	assert.False(t, isLiteral(`word\d`))
	assert.False(t, isLiteral("a|b"))
}
