package ingest

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var whitespace = strings.NewReplacer("\n", "", "\r", "", "\t", "")

// Normalize strips every newline, carriage return and tab. This also joins
// words split across lines inside string values; generators are expected to
// keep string values on one line.
func Normalize(candidate string) string {
	return whitespace.Replace(candidate)
}

// Parse normalizes candidate and parses it into a generic JSON value.
func Parse(candidate string) (gjson.Result, error) {
	normalized := Normalize(candidate)
	if !gjson.Valid(normalized) {
		return gjson.Result{}, fmt.Errorf("%w: invalid JSON in %d byte block", ErrMalformedPayload, len(normalized))
	}
	return gjson.Parse(normalized), nil
}
