package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// requiredTopLevelFields are the Document JSON fields whose absence is
// reported with an actionable message instead of a bare decode error.
var requiredTopLevelFields = []string{"hash_algorithm", "blocks"}

// DocumentJSONError describes why a Document JSON payload was rejected.
type DocumentJSONError struct {
	// Missing lists absent required top-level fields, when that is the cause.
	Missing []string
	// Err is the underlying decode error, when that is the cause.
	Err error
	msg string
}

func (e *DocumentJSONError) Error() string { return e.msg }

func (e *DocumentJSONError) Unwrap() error { return e.Err }

// ParseDocumentJSON parses a Document from wire JSON with improved
// diagnostics: invalid JSON, missing required top-level fields, and shape
// mismatches are reported distinctly. Strictness is unchanged relative to a
// plain decode.
func ParseDocumentJSON(data []byte) (*Document, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DocumentJSONError{
			Err: err,
			msg: fmt.Sprintf("Invalid JSON: %v", err),
		}
	}

	var missing []string
	for _, k := range requiredTopLevelFields {
		if _, ok := raw[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, &DocumentJSONError{
			Missing: missing,
			msg: fmt.Sprintf(
				"Invalid Document JSON: missing required top-level field(s): %s. Required top-level fields: %s.",
				strings.Join(missing, ", "),
				strings.Join(requiredTopLevelFields, ", "),
			),
		}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &DocumentJSONError{
			Err: err,
			msg: fmt.Sprintf(
				"Invalid Document JSON shape: %v. Required top-level fields: %s.",
				err,
				strings.Join(requiredTopLevelFields, ", "),
			),
		}
	}

	return &doc, nil
}
