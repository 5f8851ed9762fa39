// Package llm implements the Matcher interface with a language model.
//
// The transcript is sent to the model together with the full inventory list
// and instructions to answer with exact item names only. The reply is then
// checked against the closed catalog, so anything the model invents is
// discarded rather than passed downstream.
package llm

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"

	"github.com/nadzzz/stockline/internal/apperr"
	"github.com/nadzzz/stockline/internal/catalog"
	lm "github.com/nadzzz/stockline/internal/llm"
	"github.com/nadzzz/stockline/internal/matcher"
)

// Matcher uses a language model to classify transcripts.
type Matcher struct {
	model       llms.Model
	temperature float64
	logger      *slog.Logger
}

// New creates an llm matcher. A nil model yields a matcher whose every call
// fails with a configuration error, which lets the daemon start and report
// the missing credential per request.
func New(model llms.Model, temperature float64) *Matcher {
	return &Matcher{
		model:       model,
		temperature: temperature,
		logger:      slog.Default().With("component", "llm-matcher"),
	}
}

// Name returns the backend identifier.
func (m *Matcher) Name() string { return "llm" }

// Match asks the model which catalog items the transcript requests.
func (m *Matcher) Match(ctx context.Context, transcript string) (matcher.Result, error) {
	if m.model == nil {
		return matcher.Result{}, apperr.Config("Classifier API key not configured")
	}

	reply, err := lm.Complete(ctx, m.model, buildPrompt(transcript), m.temperature)
	if err != nil {
		m.logger.Error("classification call failed", "error", err)
		return matcher.Result{}, apperr.Classification(err)
	}

	items := catalog.ParseItems(reply)
	if len(items) == 0 && reply != catalog.NoMatch {
		m.logger.Warn("classifier reply named no catalog item", "reply", truncate(reply, 200))
	}
	m.logger.Debug("classification complete", "matched", len(items))
	return matcher.Result{Items: items}, nil
}

func buildPrompt(transcript string) string {
	var sb strings.Builder
	sb.WriteString("You are an inventory classification system. Analyze the transcript and identify which item(s) from our inventory list are being requested.\n\n")
	sb.WriteString("INVENTORY LIST:\n")
	for _, it := range catalog.Items() {
		sb.WriteString("-" + string(it) + "\n")
	}
	sb.WriteString("\nTRANSCRIPT: \"" + transcript + "\"\n\n")
	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString("1. Ignore all repetitions, disfluencies (like \"hey\", \"um\", \"uh\"), and partial words in the transcript\n")
	sb.WriteString("2. Extract the core question or intent from the transcript\n")
	sb.WriteString("3. Match the extracted item to the EXACT entry in the inventory list above (case-sensitive, exact spelling)\n")
	sb.WriteString("4. If multiple items match, list all of them separated by commas\n")
	sb.WriteString("5. If no items match, respond with \"" + catalog.NoMatch + "\"\n")
	sb.WriteString("6. Return ONLY the exact item name(s) from the list, nothing else\n\n")
	sb.WriteString("RESPONSE FORMAT:\n")
	sb.WriteString("- For single item: \"Boxes of Cereal\"\n")
	sb.WriteString("- For multiple items: \"Canned Black Beans, Chicken Noodle Soup\"\n")
	sb.WriteString("- For no match: \"" + catalog.NoMatch + "\"\n")
	return sb.String()
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
