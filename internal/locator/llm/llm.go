// Package llm implements the Resolver interface by asking a language model
// to pick the closest donation center. The reply must name one of the
// catalog addresses exactly.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/nadzzz/stockline/internal/catalog"
	lm "github.com/nadzzz/stockline/internal/llm"
	"github.com/nadzzz/stockline/internal/locator"
)

// Resolver uses a language model to map coordinates to a location.
type Resolver struct {
	model       llms.Model
	temperature float64
	logger      *slog.Logger
}

// New creates an llm resolver.
func New(model llms.Model, temperature float64) *Resolver {
	return &Resolver{
		model:       model,
		temperature: temperature,
		logger:      slog.Default().With("component", "llm-locator"),
	}
}

// Name returns the backend identifier.
func (r *Resolver) Name() string { return "llm" }

// Nearest asks the model for the closest address and validates the reply
// against the closed location set.
func (r *Resolver) Nearest(ctx context.Context, c catalog.Coordinates) (catalog.Location, error) {
	if r.model == nil {
		return catalog.Location{}, fmt.Errorf("%w: no language model configured", locator.ErrUnresolved)
	}
	if !c.Valid() {
		return catalog.Location{}, fmt.Errorf("%w: invalid coordinates %s", locator.ErrUnresolved, c)
	}

	reply, err := lm.Complete(ctx, r.model, buildPrompt(c), r.temperature)
	if err != nil {
		return catalog.Location{}, fmt.Errorf("location prompt: %w", err)
	}

	loc, ok := catalog.LookupLocation(reply)
	if !ok {
		r.logger.Warn("model named an unknown location", "reply", reply)
		return catalog.Location{}, fmt.Errorf("%w: unexpected reply %q", locator.ErrUnresolved, reply)
	}
	return loc, nil
}

func buildPrompt(c catalog.Coordinates) string {
	var sb strings.Builder
	sb.WriteString("You are a location matching system. Given GPS coordinates, select the CLOSEST address from this list of donation center locations:\n\n")
	sb.WriteString("DONATION CENTER LOCATIONS:\n")
	for _, l := range catalog.Locations() {
		sb.WriteString("- " + l.Name + "\n")
	}
	sb.WriteString("\nUSER COORDINATES: " + c.String() + "\n\n")
	sb.WriteString("INSTRUCTIONS:\n")
	sb.WriteString("1. Determine which city or area these coordinates are closest to\n")
	sb.WriteString("2. Return ONLY the exact address from the list above that is nearest to these coordinates\n")
	sb.WriteString("3. Return the FULL address exactly as shown in the list\n")
	sb.WriteString("4. No explanations, no extra text, just the address\n\n")
	sb.WriteString("RESPONSE FORMAT: Just the address, nothing else.\n")
	sb.WriteString("Example: \"" + catalog.Locations()[0].Name + "\"\n")
	return sb.String()
}
