// Package http implements the HTTP transport for stockline.
//
// This transport exposes the JSON API used by the voice front end:
// POST /api/transcript resolves a transcript, POST /api/query looks up one
// item directly. Swagger UI is served under /swagger/.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/stockline/docs"
	"github.com/nadzzz/stockline/internal/apperr"
	"github.com/nadzzz/stockline/internal/message"
	"github.com/nadzzz/stockline/internal/transport"
)

// RequestIDHeader carries the request correlation ID.
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes bounds the size of a request body.
const maxBodyBytes = 1 << 20

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port   int
	server *http.Server
}

// New creates a new HTTP transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Handler returns the routes served by the transport.
func (t *Transport) Handler(handler transport.Handler) http.Handler {
	mux := http.NewServeMux()

	// POST /api/transcript: resolves a transcript to a stock answer.
	mux.HandleFunc("POST /api/transcript", func(w http.ResponseWriter, r *http.Request) {
		t.handleTranscript(w, r, handler)
	})

	// POST /api/query: looks up the stock of one item.
	mux.HandleFunc("POST /api/query", func(w http.ResponseWriter, r *http.Request) {
		t.handleQuery(w, r, handler)
	})

	// Swagger UI: serves the generated OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return withRequestID(mux)
}

// Listen starts the HTTP server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Handler(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// handleTranscript processes a POST /api/transcript request.
//
// @Summary     Resolve a transcript to a stock answer
// @Description Matches the transcript against the item catalog, resolves the nearest donation center
// @Description when coordinates are given, and asks the retrieval backend for current stock.
// @Description "No match" is a resolved outcome and returns 200 with success=false.
// @Tags        stock
// @Accept      json
// @Produce     json
// @Param       request  body      message.Request   true  "Transcript and optional coordinates"
// @Param       X-Request-ID  header  string  false  "Correlation ID; generated when absent"
// @Success     200  {object}  message.Response  "Resolved outcome, including no-match and an unreachable backend"
// @Failure     400  {object}  message.Response  "Missing transcript or invalid JSON"
// @Failure     500  {object}  message.Response  "Missing configuration or processing error"
// @Router      /api/transcript [post]
func (t *Transport) handleTranscript(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	var req message.Request
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, &message.Response{
			Answer:    "Invalid request body",
			Error:     "Invalid request body",
			Details:   err.Error(),
			Timestamp: time.Now().UTC(),
		})
		return
	}
	req.ID = RequestID(r.Context())

	resp, err := handler.Resolve(r.Context(), &req)
	writeJSON(w, statusOf(err), resp)
}

// handleQuery processes a POST /api/query request.
//
// @Summary     Look up the stock of one item
// @Description Asks the retrieval backend how many of the item are in stock and returns the formatted rows.
// @Tags        stock
// @Accept      json
// @Produce     json
// @Param       request  body      message.ItemRequest   true  "Catalog item name"
// @Success     200  {object}  message.ItemResponse  "Stock information"
// @Failure     400  {object}  message.ItemResponse  "Missing or unknown item"
// @Failure     500  {object}  message.ItemResponse  "Missing configuration or backend error"
// @Router      /api/query [post]
func (t *Transport) handleQuery(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	var req message.ItemRequest
	if err := decode(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, &message.ItemResponse{
			Answer:    "Invalid request body",
			Error:     "Invalid request body",
			Details:   err.Error(),
			Timestamp: time.Now().UTC(),
		})
		return
	}
	req.ID = RequestID(r.Context())

	resp, err := handler.QueryItem(r.Context(), &req)
	writeJSON(w, statusOf(err), resp)
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return apperr.HTTPStatus(apperr.KindOf(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

type requestIDKey struct{}

// RequestID returns the correlation ID stored on ctx by the transport.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}
