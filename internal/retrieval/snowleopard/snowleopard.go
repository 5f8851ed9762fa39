// Package snowleopard implements the retrieval client for a SnowLeopard
// style datafile API over HTTP.
//
// Two calls are used:
//
//	POST {base}/datafiles/{id}/response   streaming, one JSON chunk per line
//	POST {base}/datafiles/{id}/retrieve   single JSON document
//
// Both take {"userQuery": question} and a bearer token.
package snowleopard

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/nadzzz/stockline/internal/config"
	"github.com/nadzzz/stockline/internal/retrieval"
)

const (
	// maxChunkBytes bounds a single line of the response stream.
	maxChunkBytes = 8 << 20
	// maxErrorBody bounds the body quoted in a status error.
	maxErrorBody = 2048
)

// Client talks to the retrieval API. It owns its transport, so Close
// releases every connection it opened.
type Client struct {
	baseURL   string
	apiKey    string
	transport *http.Transport
	http      *http.Client
	logger    *slog.Logger
}

// New creates a client from config.
func New(cfg config.RetrievalConfig) *Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		transport: tr,
		http:      &http.Client{Transport: tr, Timeout: cfg.Timeout},
		logger:    slog.Default().With("component", "snowleopard"),
	}
}

type queryRequest struct {
	UserQuery string `json:"userQuery"`
}

// StatusError is returned for a non-2xx reply.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("retrieval backend returned status %d: %s", e.StatusCode, e.Body)
}

// Response opens the streaming answer for question.
func (c *Client) Response(ctx context.Context, datafileID, question string) (retrieval.Stream, error) {
	resp, err := c.post(ctx, datafileID, "response", question, "application/x-ndjson")
	if err != nil {
		return nil, err
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), maxChunkBytes)
	c.logger.Debug("response stream opened", "datafile_id", datafileID)
	return &stream{body: resp.Body, scanner: sc}, nil
}

// Retrieve runs question and decodes the single reply document.
func (c *Client) Retrieve(ctx context.Context, datafileID, question string) (*retrieval.RetrieveResult, error) {
	resp, err := c.post(ctx, datafileID, "retrieve", question, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading retrieve reply: %w", err)
	}

	var result retrieval.RetrieveResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decoding retrieve reply: %w", err)
	}
	result.Raw = body
	return &result, nil
}

// Close drops idle connections held by the client's transport.
func (c *Client) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

func (c *Client) post(ctx context.Context, datafileID, op, question, accept string) (*http.Response, error) {
	payload, err := json.Marshal(queryRequest{UserQuery: question})
	if err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	endpoint := c.baseURL + "/datafiles/" + url.PathEscape(datafileID) + "/" + op
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return resp, nil
}

type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// sseFields are the SSE field lines that carry no chunk.
var sseFields = [][]byte{[]byte("event:"), []byte("id:"), []byte("retry:")}

// Recv returns the next chunk. Blank lines are skipped and SSE framing is
// accepted: "data:" payloads are parsed, other field lines are dropped.
func (s *stream) Recv() (*retrieval.Chunk, error) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if after, ok := bytes.CutPrefix(line, []byte("data:")); ok {
			line = bytes.TrimSpace(after)
		} else if isSSEField(line) {
			continue
		}
		if len(line) == 0 || line[0] == ':' || string(line) == "[DONE]" {
			continue
		}
		return retrieval.ParseChunk(line)
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading response stream: %w", err)
	}
	return nil, io.EOF
}

func isSSEField(line []byte) bool {
	for _, f := range sseFields {
		if bytes.HasPrefix(line, f) {
			return true
		}
	}
	return false
}

func (s *stream) Close() error {
	return s.body.Close()
}

// Opener creates one Client per request from fixed settings.
type Opener struct {
	cfg config.RetrievalConfig
}

// NewOpener returns an Opener for cfg.
func NewOpener(cfg config.RetrievalConfig) *Opener {
	return &Opener{cfg: cfg}
}

// Open returns a new Client.
func (o *Opener) Open(ctx context.Context) (retrieval.Client, error) {
	if o.cfg.BaseURL == "" {
		return nil, fmt.Errorf("retrieval base url not configured")
	}
	return New(o.cfg), nil
}
