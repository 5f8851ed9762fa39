// Package pipeline implements the resolution pipeline.
//
// A transcript request runs through a fixed sequence: match catalog items,
// resolve the nearest location when coordinates were given, compose the
// question, stream the answer from the retrieval backend and extract it.
// Every branch, including failures, produces the same response document.
// The retrieval client opened for a request is closed exactly once before
// Resolve returns.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nadzzz/stockline/internal/answer"
	"github.com/nadzzz/stockline/internal/apperr"
	"github.com/nadzzz/stockline/internal/catalog"
	"github.com/nadzzz/stockline/internal/config"
	"github.com/nadzzz/stockline/internal/locator"
	"github.com/nadzzz/stockline/internal/matcher"
	"github.com/nadzzz/stockline/internal/message"
	"github.com/nadzzz/stockline/internal/metrics"
	"github.com/nadzzz/stockline/internal/query"
	"github.com/nadzzz/stockline/internal/retrieval"
)

const (
	opTranscript = "transcript"
	opQuery      = "query"

	msgNoTranscript  = "No transcript provided"
	msgNoItem        = "No valid item provided"
	msgNoAPIKey      = "retrieval backend API key not configured"
	msgNoDatafile    = "retrieval backend datafile ID not configured"
	msgFailed        = "Failed to process transcript"
	msgQueryFailed   = "Failed to query stock information"
	msgRetrieveError = "Failed to retrieve stock information"
)

// Pipeline resolves transcripts and item lookups against the retrieval backend.
type Pipeline struct {
	matcher    matcher.Matcher
	locator    locator.Resolver // nil disables location resolution
	opener     retrieval.Opener
	apiKey     string
	datafileID string
	now        func() time.Time
}

// New creates a Pipeline.
func New(m matcher.Matcher, l locator.Resolver, o retrieval.Opener, cfg config.RetrievalConfig) *Pipeline {
	return &Pipeline{
		matcher:    m,
		locator:    l,
		opener:     o,
		apiKey:     cfg.APIKey,
		datafileID: cfg.DatafileID,
		now:        time.Now,
	}
}

// Resolve runs one transcript request. The returned response is always
// non-nil and ready to serialize. The error, when set, classifies the
// failure for the transport's status mapping; it is nil for every resolved
// outcome including "no match".
func (p *Pipeline) Resolve(ctx context.Context, req *message.Request) (resp *message.Response, err error) {
	start := time.Now()
	logger := slog.With("request_id", req.ID, "operation", opTranscript)
	metrics.RequestsActive.Inc()

	resp = &message.Response{Timestamp: p.now().UTC()}
	matched := false

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panic", "panic", r)
			resp, err = failTranscript(resp, apperr.Internal(msgFailed, fmt.Errorf("panic: %v", r)))
		}
		metrics.RequestsActive.Dec()
		metrics.RequestDuration.WithLabelValues(opTranscript).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(opTranscript, outcome(err, matched)).Inc()
		logger.Info("request complete", "success", resp.Success, "duration", time.Since(start), "error", err)
	}()

	transcript := strings.TrimSpace(req.Transcript)
	if transcript == "" {
		return failTranscript(resp, apperr.Input(msgNoTranscript))
	}

	coords, hasCoords := catalog.ParseCoordinates(string(req.Latitude), string(req.Longitude))
	if hasCoords {
		resp.Location = &message.Location{Latitude: coords.Latitude, Longitude: coords.Longitude}
	} else if req.Latitude != "" || req.Longitude != "" {
		logger.Debug("ignoring incomplete or invalid coordinates", "latitude", req.Latitude, "longitude", req.Longitude)
	}

	// Step 1: Match catalog items.
	res, err := p.matcher.Match(ctx, transcript)
	if err != nil {
		logger.Error("item matching failed", "matcher", p.matcher.Name(), "error", err)
		var ae *apperr.Error
		if !errors.As(err, &ae) {
			err = apperr.Classification(err)
		}
		return failTranscript(resp, err)
	}
	resp.Analysis = res.Analysis()
	logger.Info("item matching complete", "matcher", p.matcher.Name(), "analysis", resp.Analysis)

	if !res.Matched() {
		resp.Answer = catalog.NoMatch
		resp.Error = catalog.NoMatch
		return resp, nil
	}
	matched = true

	if err := p.checkConfig(); err != nil {
		return failTranscript(resp, err)
	}

	// Step 2: Resolve the nearest location. Failures only drop the enrichment.
	var loc *catalog.Location
	if hasCoords {
		loc = p.resolveLocation(ctx, logger, coords)
		if loc != nil {
			name := loc.Name
			resp.Location.Name = &name
		}
	}

	// Step 3: Compose the question.
	q := query.New(resp.Analysis, loc)
	resp.Item = q.Item
	resp.Question = q.Question
	logger.Debug("question composed", "question", q.Question)

	// Step 4: Stream the answer.
	client, err := p.open(ctx, logger)
	if err != nil {
		return failTranscript(resp, err)
	}
	defer p.release(client, logger)

	out, err := retrieval.Consume(ctx, client, p.datafileID, q.Question)
	if err != nil {
		logger.Error("stream consumption failed", "error", err)
		return failTranscript(resp, err)
	}
	metrics.StreamChunks.Add(float64(out.Chunks))
	if out.Terminal == nil {
		logger.Warn("stream ended without a terminal chunk", "chunks", out.Chunks)
	}

	// Step 5: Extract the answer.
	text, source := answer.ExtractWithSource(out.Terminal)
	metrics.AnswerSource.WithLabelValues(source).Inc()

	resp.Success = true
	resp.StockInfo = text
	resp.Answer = text
	if out.Terminal != nil {
		resp.RawData = out.Terminal.Raw
	}
	return resp, nil
}

// QueryItem looks up the stock of one item through the non-streaming
// retrieve call. item may be a comma-separated list of catalog items.
func (p *Pipeline) QueryItem(ctx context.Context, req *message.ItemRequest) (resp *message.ItemResponse, err error) {
	start := time.Now()
	logger := slog.With("request_id", req.ID, "operation", opQuery)
	metrics.RequestsActive.Inc()

	resp = &message.ItemResponse{Timestamp: p.now().UTC()}

	defer func() {
		metrics.RequestsActive.Dec()
		metrics.RequestDuration.WithLabelValues(opQuery).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(opQuery, outcome(err, true)).Inc()
		logger.Info("request complete", "success", resp.Success, "duration", time.Since(start), "error", err)
	}()

	item := strings.TrimSpace(req.Item)
	items := catalog.ParseItems(item)
	if item == "" || item == catalog.NoMatch || len(items) == 0 {
		return failItem(resp, apperr.Input(msgNoItem))
	}
	if err := p.checkConfig(); err != nil {
		return failItem(resp, err)
	}

	resp.Item = catalog.JoinItems(items)
	resp.Question = query.ItemLookup(resp.Item)

	client, err := p.open(ctx, logger)
	if err != nil {
		return failItem(resp, err)
	}
	defer p.release(client, logger)

	res, err := client.Retrieve(ctx, p.datafileID, resp.Question)
	if err != nil {
		logger.Error("retrieve failed", "error", err)
		return failItem(resp, retrieval.Classify(err))
	}
	if res.Error != "" {
		logger.Error("retrieval backend reported an error", "error", res.Error)
		return failItem(resp, apperr.Internal(msgRetrieveError, errors.New(res.Error)))
	}

	text := answer.FormatRetrieve(res)
	resp.Success = true
	resp.StockInfo = text
	resp.Answer = text
	if res.Data != nil {
		raw, err := json.Marshal(res.Data)
		if err == nil {
			resp.RawData = raw
		}
	}
	return resp, nil
}

func (p *Pipeline) checkConfig() error {
	if p.apiKey == "" {
		return apperr.Config(msgNoAPIKey)
	}
	if p.datafileID == "" {
		return apperr.Config(msgNoDatafile)
	}
	return nil
}

func (p *Pipeline) resolveLocation(ctx context.Context, logger *slog.Logger, c catalog.Coordinates) *catalog.Location {
	if p.locator == nil {
		metrics.LocationResolutions.WithLabelValues("none", "skipped").Inc()
		return nil
	}
	backend := p.locator.Name()

	loc, err := p.locator.Nearest(ctx, c)
	if err != nil {
		metrics.LocationResolutions.WithLabelValues(backend, "failed").Inc()
		logger.Warn("location resolution failed, continuing without location", "locator", backend, "error", err)
		return nil
	}
	if _, ok := catalog.LookupLocation(loc.Name); !ok {
		metrics.LocationResolutions.WithLabelValues(backend, "failed").Inc()
		logger.Warn("locator returned an unknown location", "locator", backend, "location", loc.Name)
		return nil
	}

	metrics.LocationResolutions.WithLabelValues(backend, "resolved").Inc()
	logger.Info("location resolved", "locator", backend, "location", loc.Name)
	return &loc
}

func (p *Pipeline) open(ctx context.Context, logger *slog.Logger) (retrieval.Client, error) {
	client, err := p.opener.Open(ctx)
	if err != nil {
		logger.Error("opening retrieval client failed", "error", err)
		return nil, retrieval.Classify(err)
	}
	metrics.RetrievalClientsOpen.Inc()
	return client, nil
}

func (p *Pipeline) release(client retrieval.Client, logger *slog.Logger) {
	metrics.RetrievalClientsOpen.Dec()
	if err := client.Close(); err != nil {
		logger.Warn("closing retrieval client", "error", err)
	}
}

// describe returns the error and details fields for err.
func describe(err error, generic string) (string, string) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return generic, err.Error()
	}
	switch ae.Kind {
	case apperr.KindInput, apperr.KindConfig, apperr.KindNetwork:
		return ae.Message, ""
	}
	details := ""
	if ae.Err != nil {
		details = ae.Err.Error()
	}
	if ae.Kind == apperr.KindInternal && ae.Message == "" {
		return generic, details
	}
	return ae.Message, details
}

func failTranscript(resp *message.Response, err error) (*message.Response, error) {
	resp.Success = false
	resp.Error, resp.Details = describe(err, msgFailed)
	resp.Answer = resp.Error
	return resp, err
}

func failItem(resp *message.ItemResponse, err error) (*message.ItemResponse, error) {
	resp.Success = false
	resp.Error, resp.Details = describe(err, msgQueryFailed)
	resp.Answer = resp.Error
	return resp, err
}

func outcome(err error, matched bool) string {
	if err == nil {
		if !matched {
			return metrics.OutcomeNoMatch
		}
		return metrics.OutcomeSuccess
	}
	switch apperr.KindOf(err) {
	case apperr.KindInput:
		return metrics.OutcomeInput
	case apperr.KindConfig:
		return metrics.OutcomeConfig
	case apperr.KindClassification:
		return metrics.OutcomeClassification
	case apperr.KindNetwork:
		return metrics.OutcomeNetwork
	default:
		return metrics.OutcomeError
	}
}
