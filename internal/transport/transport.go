// Package transport defines the interface for pluggable inbound transports.
//
// Each transport (HTTP, gRPC) implements this interface and hands every
// request to the same Handler. The pipeline doesn't care how requests
// arrive; it only works with the Handler contract.
package transport

import (
	"context"

	"github.com/nadzzz/stockline/internal/message"
)

// Handler processes inbound requests. The returned response is always
// non-nil; a non-nil error classifies the failure for status mapping.
type Handler interface {
	Resolve(ctx context.Context, req *message.Request) (*message.Response, error)
	QueryItem(ctx context.Context, req *message.ItemRequest) (*message.ItemResponse, error)
}

// Transport is the interface that every transport adapter must implement.
type Transport interface {
	// Name returns the transport identifier (e.g., "grpc", "http").
	Name() string

	// Listen starts accepting requests and passes them to the handler.
	// It blocks until the context is cancelled.
	Listen(ctx context.Context, handler Handler) error

	// Close gracefully shuts down the transport, draining in-flight work.
	Close() error
}
