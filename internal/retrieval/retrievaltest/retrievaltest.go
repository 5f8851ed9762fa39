// Package retrievaltest provides an in-memory retrieval backend for tests.
// It records every question asked and counts how often each client and
// stream is closed.
package retrievaltest

import (
	"context"
	"io"
	"sync"

	"github.com/nadzzz/stockline/internal/retrieval"
)

// Script is what a fake client replays.
type Script struct {
	// Chunks are raw JSON chunks returned by the stream, in order.
	Chunks []string

	// ResponseErr is returned by Response instead of a stream.
	ResponseErr error

	// RecvErr is returned by the stream after the last chunk instead of io.EOF.
	RecvErr error

	// Result and RetrieveErr are returned by Retrieve.
	Result      *retrieval.RetrieveResult
	RetrieveErr error
}

// Client is a scripted retrieval.Client.
type Client struct {
	script Script

	mu           sync.Mutex
	questions    []string
	datafiles    []string
	closes       int
	streamCloses int
}

// NewClient returns a client that replays s.
func NewClient(s Script) *Client {
	return &Client{script: s}
}

// Response returns a stream over the scripted chunks.
func (c *Client) Response(ctx context.Context, datafileID, question string) (retrieval.Stream, error) {
	c.record(datafileID, question)
	if c.script.ResponseErr != nil {
		return nil, c.script.ResponseErr
	}
	return &stream{client: c, chunks: c.script.Chunks, tail: c.script.RecvErr}, nil
}

// Retrieve returns the scripted result.
func (c *Client) Retrieve(ctx context.Context, datafileID, question string) (*retrieval.RetrieveResult, error) {
	c.record(datafileID, question)
	if c.script.RetrieveErr != nil {
		return nil, c.script.RetrieveErr
	}
	return c.script.Result, nil
}

// Close counts the call.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

// Closes returns how many times Close was called.
func (c *Client) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// StreamCloses returns how many streams were closed.
func (c *Client) StreamCloses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamCloses
}

// Questions returns the questions asked so far.
func (c *Client) Questions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.questions...)
}

// Datafiles returns the datafile IDs queried so far.
func (c *Client) Datafiles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.datafiles...)
}

func (c *Client) record(datafileID, question string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.datafiles = append(c.datafiles, datafileID)
	c.questions = append(c.questions, question)
}

type stream struct {
	client *Client
	chunks []string
	tail   error
	next   int
}

func (s *stream) Recv() (*retrieval.Chunk, error) {
	if s.next < len(s.chunks) {
		raw := s.chunks[s.next]
		s.next++
		return retrieval.ParseChunk([]byte(raw))
	}
	if s.tail != nil {
		return nil, s.tail
	}
	return nil, io.EOF
}

func (s *stream) Close() error {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	s.client.streamCloses++
	return nil
}

// Opener hands out a fresh scripted Client per Open call.
type Opener struct {
	Script  Script
	OpenErr error

	mu      sync.Mutex
	clients []*Client
}

// Open returns a new Client, or OpenErr.
func (o *Opener) Open(ctx context.Context) (retrieval.Client, error) {
	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	c := NewClient(o.Script)
	o.mu.Lock()
	o.clients = append(o.clients, c)
	o.mu.Unlock()
	return c, nil
}

// Clients returns every client opened so far.
func (o *Opener) Clients() []*Client {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Client(nil), o.clients...)
}

// Opens returns how many clients were opened.
func (o *Opener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.clients)
}
