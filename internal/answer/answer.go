// Package answer turns backend payloads into the single answer string shown
// to the user.
//
// Terminal chunks have changed shape across backend versions, so the answer
// is looked up through an ordered list of rules. The first rule whose field
// is present decides the answer. A field that is missing or null is absent;
// a field holding an empty string is present.
package answer

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/nadzzz/stockline/internal/retrieval"
)

// Default is the answer when no rule finds a usable field.
const Default = "No stock information available"

// Source names reported by ExtractWithSource.
const (
	SourceCompleteAnswer = "complete_answer"
	SourceSummary        = "summary"
	SourceDefault        = "default"
)

type rule struct {
	source string
	path   []string
}

var rules = []rule{
	{source: SourceCompleteAnswer, path: []string{"llmResponse", "complete_answer"}},
	{source: SourceSummary, path: []string{"llmResponse", "data", "summary"}},
}

// Extract returns the answer carried by chunk, or Default.
func Extract(chunk *retrieval.Chunk) string {
	s, _ := ExtractWithSource(chunk)
	return s
}

// ExtractWithSource is Extract that also names the rule that produced the
// answer. The returned answer is trimmed and never empty.
func ExtractWithSource(chunk *retrieval.Chunk) (string, string) {
	if chunk == nil || len(chunk.Raw) == 0 {
		return Default, SourceDefault
	}
	for _, r := range rules {
		v, ok := lookup(chunk.Raw, r.path)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" {
			return Default, r.source
		}
		return v, r.source
	}
	return Default, SourceDefault
}

// lookup walks path through nested objects. It reports false when a step is
// missing, null or not an object. String leaves are unquoted; other leaves
// are returned as JSON text.
func lookup(raw json.RawMessage, path []string) (string, bool) {
	cur := raw
	for _, key := range path {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(cur, &obj); err != nil || obj == nil {
			return "", false
		}
		next, ok := obj[key]
		if !ok || isNull(next) {
			return "", false
		}
		cur = next
	}

	var s string
	if err := json.Unmarshal(cur, &s); err == nil {
		return s, true
	}
	return string(bytes.TrimSpace(cur)), true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
