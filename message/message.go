// Package message defines the wire contract of the gaze service: the bus
// subjects it listens and publishes on, and the JSON payload carried on
// each. Correlation tokens are opaque byte strings chosen by the caller
// and echoed back verbatim; they are never interpreted.
package message

import (
	"encoding/json"
	"fmt"

	"github.com/c360/gaze/errors"
	"github.com/c360/gaze/pkg/timestamp"
)

// Default subjects. Deployments that share a bus across environments
// override these through configuration.
const (
	// OfferForScan carries text to test against the active pattern set.
	OfferForScan = "offer-for-scan"
	// RefocusPatterns carries an add/remove delta for the pattern set.
	RefocusPatterns = "refocus-patterns"
	// StatusCheck probes service liveness and the active pattern list.
	StatusCheck = "status-check"

	// MatchFound answers an offer whose text matched. Non-matches are
	// never answered; callers treat silence past their deadline as
	// clean.
	MatchFound = "match-found"
	// StatusResponse answers a status check.
	StatusResponse = "status-response"
	// CacheInvalidate is broadcast after every successful refocus so
	// collaborators drop previously computed filtering decisions.
	CacheInvalidate = "cache-invalidate"
)

// ScanDecisions is the invalidation scope named in cache-invalidate
// notices: any filtering decision computed from an earlier pattern set.
const ScanDecisions = "scan-decisions"

// Meta carries envelope metadata common to every payload.
type Meta struct {
	// Source identifies the publishing process.
	Source string `json:"source,omitempty"`
	// Timestamp is the publish time in Unix milliseconds.
	Timestamp int64 `json:"ts,omitempty"`
}

// NewMeta stamps envelope metadata for an outbound payload.
func NewMeta(source string) Meta {
	return Meta{Source: source, Timestamp: timestamp.Now()}
}

// ScanOffer asks the service to test Text against the active patterns.
type ScanOffer struct {
	Token []byte `json:"token"`
	Text  string `json:"text"`
	Meta  Meta   `json:"meta"`
}

// Validate checks the offer carries a correlation token. Empty text is
// legal and simply never matches.
func (o *ScanOffer) Validate() error {
	if len(o.Token) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("missing correlation token"), "Message", "Validate", "validate scan offer")
	}
	return nil
}

// Refocus is an add/remove delta against the active pattern set. An empty
// delta is legal and re-persists the current set unchanged.
type Refocus struct {
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
	Meta   Meta     `json:"meta"`
}

// Validate rejects patterns that cannot survive the newline-joined list
// file. Full grammar validation belongs to the match engine.
func (r *Refocus) Validate() error {
	for _, p := range r.Add {
		if p == "" {
			return errors.WrapInvalid(
				fmt.Errorf("empty pattern in add set"), "Message", "Validate", "validate refocus")
		}
	}
	return nil
}

// StatusProbe asks the service to describe itself.
type StatusProbe struct {
	Token []byte `json:"token"`
	Meta  Meta   `json:"meta"`
}

// Validate checks the probe carries a correlation token.
func (p *StatusProbe) Validate() error {
	if len(p.Token) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("missing correlation token"), "Message", "Validate", "validate status probe")
	}
	return nil
}

// Match reports that an offer's text hit at least one pattern.
type Match struct {
	Token []byte `json:"token"`
	Meta  Meta   `json:"meta"`
}

// Status describes the running service: identity, process start time in
// Unix seconds, and the active pattern list.
type Status struct {
	Token     []byte   `json:"token"`
	Identity  string   `json:"identity"`
	StartUnix int64    `json:"start_unix"`
	Patterns  []string `json:"patterns"`
	Meta      Meta     `json:"meta"`
}

// Invalidation tells collaborators that filtering decisions computed
// before this notice may be stale.
type Invalidation struct {
	Topic    string `json:"topic"`
	Identity string `json:"identity"`
	Meta     Meta   `json:"meta"`
}

// validator is implemented by inbound payloads.
type validator interface {
	Validate() error
}

// Encode serializes a payload for publishing.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "Message", "Encode", "encode payload")
	}
	return data, nil
}

// Decode parses and validates an inbound payload. Undecodable or invalid
// payloads come back as invalid-data errors for the caller to log.
func Decode[T any](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrInvalidData, err), "Message", "Decode", "decode payload")
	}
	if val, ok := any(&v).(validator); ok {
		if err := val.Validate(); err != nil {
			return nil, err
		}
	}
	return &v, nil
}
