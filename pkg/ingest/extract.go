package ingest

import "strings"

const (
	openMarker  = "```json"
	closeMarker = "```"
)

// Extract returns the content between the first "```json" marker and the next
// "```". The search is case-sensitive and non-greedy, so a closing marker
// inside the payload ends it early.
//
// Text without a block, or with an empty one, returns ErrNotFound.
func Extract(text string) (string, error) {
	start := strings.Index(text, openMarker)
	if start < 0 {
		return "", ErrNotFound
	}
	rest := text[start+len(openMarker):]
	end := strings.Index(rest, closeMarker)
	if end < 0 {
		return "", ErrNotFound
	}
	candidate := rest[:end]
	if strings.TrimSpace(candidate) == "" {
		return "", ErrNotFound
	}
	return candidate, nil
}

// Strip removes the first structured block from text and returns the
// surrounding prose, trimmed. Text without a block is returned as is.
func Strip(text string) string {
	start := strings.Index(text, openMarker)
	if start < 0 {
		return text
	}
	rest := text[start+len(openMarker):]
	end := strings.Index(rest, closeMarker)
	if end < 0 {
		return text
	}
	before := strings.TrimSpace(text[:start])
	after := strings.TrimSpace(rest[end+len(closeMarker):])
	switch {
	case before == "":
		return after
	case after == "":
		return before
	}
	return before + "\n\n" + after
}
