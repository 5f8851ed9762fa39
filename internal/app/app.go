// Package app wires the configured backends into a resolution pipeline. Both
// the daemon and the operator CLI build their pipeline here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"

	"github.com/nadzzz/stockline/internal/config"
	"github.com/nadzzz/stockline/internal/llm"
	"github.com/nadzzz/stockline/internal/locator"
	geolocator "github.com/nadzzz/stockline/internal/locator/geo"
	llmlocator "github.com/nadzzz/stockline/internal/locator/llm"
	"github.com/nadzzz/stockline/internal/matcher"
	"github.com/nadzzz/stockline/internal/matcher/keyword"
	llmmatcher "github.com/nadzzz/stockline/internal/matcher/llm"
	"github.com/nadzzz/stockline/internal/pipeline"
	"github.com/nadzzz/stockline/internal/retrieval"
	"github.com/nadzzz/stockline/internal/retrieval/snowleopard"
)

// Option customises Build.
type Option func(*options)

type options struct {
	opener retrieval.Opener
	model  llms.Model
}

// WithOpener replaces the retrieval backend.
func WithOpener(o retrieval.Opener) Option {
	return func(opts *options) { opts.opener = o }
}

// WithModel replaces the language model used by llm backends.
func WithModel(m llms.Model) Option {
	return func(opts *options) { opts.model = m }
}

// Build creates the pipeline described by cfg.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*pipeline.Pipeline, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.model == nil && (cfg.Matcher.Backend == "llm" || cfg.Locator.Backend == "llm") {
		m, err := llm.New(ctx, cfg.LLM)
		switch {
		case errors.Is(err, llm.ErrMissingAPIKey):
			// Reported per request, like any other missing credential.
			slog.Warn("language model not configured", "provider", cfg.LLM.Provider)
		case err != nil:
			return nil, fmt.Errorf("creating language model: %w", err)
		default:
			o.model = m
		}
	}

	var mt matcher.Matcher
	switch cfg.Matcher.Backend {
	case "keyword":
		km, err := keyword.New(cfg.Matcher.AliasMap())
		if err != nil {
			return nil, fmt.Errorf("creating keyword matcher: %w", err)
		}
		mt = km
	case "llm":
		mt = llmmatcher.New(o.model, cfg.LLM.Temperature)
	default:
		return nil, fmt.Errorf("unknown matcher backend %q", cfg.Matcher.Backend)
	}

	var lc locator.Resolver
	switch cfg.Locator.Backend {
	case "haversine":
		lc = geolocator.New()
	case "llm":
		lc = llmlocator.New(o.model, cfg.LLM.Temperature)
	default:
		return nil, fmt.Errorf("unknown locator backend %q", cfg.Locator.Backend)
	}

	if o.opener == nil {
		o.opener = snowleopard.NewOpener(cfg.Retrieval)
	}

	slog.Info("pipeline configured",
		"matcher", mt.Name(),
		"locator", lc.Name(),
		"retrieval", cfg.Retrieval.BaseURL)

	return pipeline.New(mt, lc, o.opener, cfg.Retrieval), nil
}
