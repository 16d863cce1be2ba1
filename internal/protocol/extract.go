// Package protocol defines the contract between a completion service's
// free-form text output and the typed action stream the rest of the
// system executes, plus the status and history streams a run emits.
package protocol

import (
	"encoding/json"
	"errors"

	"github.com/drover-dev/drover/internal/domain"
)

// ErrNoJSONFound is the variant of MalformedOutputError reported when a
// response closes no balanced object at all.
var ErrNoJSONFound = errors.New("no valid JSON object found in response")

// MalformedOutputError means a completion response could not be resolved
// into an action: either no balanced JSON object was found (wraps
// ErrNoJSONFound), or the first balanced candidate failed to decode
// (wraps the JSON or action-factory error). It is never retried here;
// the caller owns any retry policy.
type MalformedOutputError struct {
	Err error
}

func (e *MalformedOutputError) Error() string {
	if errors.Is(e.Err, ErrNoJSONFound) {
		return e.Err.Error()
	}
	return "invalid JSON in response: " + e.Err.Error()
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

// Extract scans completion text for the first balanced {...} region and
// resolves it into a typed action. Prose before and after the region is
// ignored. The policy is strict first-match: once a region closes, it is
// the only candidate, and any decode failure there fails the whole
// extraction. Extract never falls through to a later object, so a run
// cannot silently act on a region the model did not intend first.
func Extract(text string) (domain.Action, error) {
	depth := 0
	start := -1
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start != -1 {
				return decodeCandidate(text[start : i+1])
			}
		}
	}
	return nil, &MalformedOutputError{Err: ErrNoJSONFound}
}

func decodeCandidate(candidate string) (domain.Action, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(candidate), &fields); err != nil {
		return nil, &MalformedOutputError{Err: err}
	}
	action, err := domain.ActionFromMap(fields)
	if err != nil {
		return nil, &MalformedOutputError{Err: err}
	}
	return action, nil
}
