package ingest

import "errors"

var (
	// ErrNotFound means the text carried no structured block. It is a valid
	// terminal state: the text is narration only.
	ErrNotFound = errors.New("no structured payload found")

	// ErrMalformedPayload means the block was found but is not valid JSON.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrSchemaViolation means the JSON does not have the envelope shape.
	ErrSchemaViolation = errors.New("schema violation")
)
