// Package retrieval defines the client contract for the natural-language
// retrieval backend and drives its streaming response to a terminal result.
//
// A backend answers a question about a datafile with a sequence of chunks.
// Each chunk carries a "__type__" discriminator; only chunks tagged
// responseResult hold the final payload. Consume reads the whole sequence
// and keeps the last terminal chunk it saw.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
)

// TypeResponseResult is the discriminator of a terminal chunk.
const TypeResponseResult = "responseResult"

// Chunk is one element of a response stream. Raw holds the chunk exactly as
// the backend sent it.
type Chunk struct {
	Type string
	Raw  json.RawMessage
}

// ParseChunk decodes the discriminator of one JSON chunk. data is copied, so
// the caller may reuse its buffer.
func ParseChunk(data []byte) (*Chunk, error) {
	var head struct {
		Type string `json:"__type__"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding chunk: %w", err)
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return &Chunk{Type: head.Type, Raw: raw}, nil
}

// IsTerminal reports whether the chunk carries the final result.
func (c *Chunk) IsTerminal() bool {
	return c != nil && c.Type == TypeResponseResult
}

// MarshalJSON returns the chunk as received.
func (c *Chunk) MarshalJSON() ([]byte, error) {
	if c == nil || len(c.Raw) == 0 {
		return []byte("null"), nil
	}
	return c.Raw, nil
}

// Stream is an open response stream. Recv returns io.EOF once the backend
// has finished sending.
type Stream interface {
	Recv() (*Chunk, error)
	Close() error
}

// RetrieveData is the structured part of a non-streaming retrieve call.
type RetrieveData struct {
	QuerySummary string            `json:"querySummary,omitempty"`
	Rows         []json.RawMessage `json:"rows,omitempty"`
	IsTrimmed    bool              `json:"isTrimmed,omitempty"`
}

// RetrieveResult is the reply of a retrieve call. Error is set when the
// backend reported a failure in the body rather than the status line.
type RetrieveResult struct {
	Data  *RetrieveData   `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
	Raw   json.RawMessage `json:"-"`
}

// Client is a handle on the retrieval backend. A Client is scoped to one
// request and must be closed by whoever opened it.
type Client interface {
	// Response starts a streaming answer to question over datafileID.
	Response(ctx context.Context, datafileID, question string) (Stream, error)

	// Retrieve asks question over datafileID and returns the rows directly.
	Retrieve(ctx context.Context, datafileID, question string) (*RetrieveResult, error)

	// Close releases the connections held by the client.
	Close() error
}

// Opener creates a Client per request.
type Opener interface {
	Open(ctx context.Context) (Client, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context) (Client, error)

// Open calls f(ctx).
func (f OpenerFunc) Open(ctx context.Context) (Client, error) { return f(ctx) }
