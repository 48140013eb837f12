package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanOfferRoundTrip(t *testing.T) {
	offer := &ScanOffer{
		Token: []byte{0x01, 0xff},
		Text:  "some text to scan",
		Meta:  NewMeta("test-caller"),
	}

	data, err := Encode(offer)
	require.NoError(t, err)

	decoded, err := Decode[ScanOffer](data)
	require.NoError(t, err)
	assert.Equal(t, offer.Token, decoded.Token)
	assert.Equal(t, offer.Text, decoded.Text)
	assert.Equal(t, "test-caller", decoded.Meta.Source)
}

func TestScanOfferRequiresToken(t *testing.T) {
	data, err := Encode(&ScanOffer{Text: "no token"})
	require.NoError(t, err)

	_, err = Decode[ScanOffer](data)
	assert.Error(t, err)
}

func TestStatusProbeRequiresToken(t *testing.T) {
	_, err := Decode[StatusProbe]([]byte(`{"token":""}`))
	assert.Error(t, err)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode[ScanOffer]([]byte("{not json"))
	assert.Error(t, err)
}

func TestRefocusEmptyDeltaIsValid(t *testing.T) {
	decoded, err := Decode[Refocus]([]byte(`{"add":[],"remove":[]}`))
	require.NoError(t, err)
	assert.Empty(t, decoded.Add)
	assert.Empty(t, decoded.Remove)
}

func TestRefocusRejectsEmptyPattern(t *testing.T) {
	_, err := Decode[Refocus]([]byte(`{"add":["ok",""]}`))
	assert.Error(t, err)
}

func TestTokenIsOpaqueBytes(t *testing.T) {
	// Arbitrary non-UTF-8 bytes must survive the wire untouched.
	token := []byte{0x00, 0x80, 0xfe, 0xff}
	data, err := Encode(&Match{Token: token, Meta: NewMeta("gaze")})
	require.NoError(t, err)

	decoded, err := Decode[Match](data)
	require.NoError(t, err)
	assert.Equal(t, token, decoded.Token)
}

func TestStatusCarriesPatterns(t *testing.T) {
	status := &Status{
		Token:     []byte("abc"),
		Identity:  "gazed-1",
		StartUnix: 1700000000,
		Patterns:  []string{"bar", "foo"},
		Meta:      NewMeta("gazed-1"),
	}
	data, err := Encode(status)
	require.NoError(t, err)

	decoded, err := Decode[Status](data)
	require.NoError(t, err)
	assert.Equal(t, status.Patterns, decoded.Patterns)
	assert.Equal(t, status.StartUnix, decoded.StartUnix)
}
