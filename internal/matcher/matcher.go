// Package matcher defines the interface for mapping a spoken transcript onto
// the closed inventory catalog.
//
// Stockline ships with two backends: keyword (deterministic, in-process) and
// llm (a language model behind langchaingo). Both return only canonical
// catalog items, so the pipeline never sees free text where an item belongs.
package matcher

import (
	"context"

	"github.com/nadzzz/stockline/internal/catalog"
)

// Result is the outcome of matching a transcript.
type Result struct {
	// Items holds the matched catalog items in the order they were found.
	// Empty means no match.
	Items []catalog.Item
}

// Matched reports whether at least one catalog item was recognised.
func (r Result) Matched() bool { return len(r.Items) > 0 }

// Analysis renders the result as the classifier contract does: the
// comma-separated item names, or catalog.NoMatch.
func (r Result) Analysis() string { return catalog.JoinItems(r.Items) }

// Matcher is the interface for transcript classification.
type Matcher interface {
	// Name returns the backend identifier (e.g., "keyword", "llm").
	Name() string

	// Match classifies the transcript. A transcript naming nothing in the
	// catalog yields an empty Result and a nil error; a non-nil error means
	// the classification itself failed.
	Match(ctx context.Context, transcript string) (Result, error)
}
