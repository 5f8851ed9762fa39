// Package grpc implements the gRPC transport for stockline.
//
// The service stockline.v1.Resolver exposes Resolve and QueryItem. Requests
// and responses are the same JSON documents as the HTTP API, carried with a
// JSON codec, so clients call it with the "json" content-subtype. The
// standard gRPC health service is registered alongside.
package grpc

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/nadzzz/stockline/internal/apperr"
	"github.com/nadzzz/stockline/internal/message"
	"github.com/nadzzz/stockline/internal/transport"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "stockline.v1.Resolver"

	ResolveMethod   = "/" + ServiceName + "/Resolve"
	QueryItemMethod = "/" + ServiceName + "/QueryItem"

	requestIDKey = "x-request-id"
)

// Transport implements transport.Transport over gRPC.
type Transport struct {
	port   int
	server *grpc.Server
	health *health.Server
}

// New creates a new gRPC transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "grpc" }

// Listen starts the gRPC server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", t.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	slog.Info("grpc transport listening", "port", t.port)
	return t.Serve(ctx, lis, handler)
}

// Serve serves on lis until ctx is cancelled or Close is called.
func (t *Transport) Serve(ctx context.Context, lis net.Listener, handler transport.Handler) error {
	t.server = grpc.NewServer(grpc.ChainUnaryInterceptor(logUnary))
	t.server.RegisterService(&serviceDesc, handler)

	t.health = health.NewServer()
	healthpb.RegisterHealthServer(t.server, t.health)
	t.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	t.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		slog.Info("grpc transport shutting down")
		t.health.Shutdown()
		t.server.GracefulStop()
	}()

	return t.server.Serve(lis)
}

// Close gracefully stops the gRPC server.
func (t *Transport) Close() error {
	if t.health != nil {
		t.health.Shutdown()
	}
	if t.server != nil {
		t.server.GracefulStop()
	}
	return nil
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*transport.Handler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Resolve", Handler: resolveHandler},
		{MethodName: "QueryItem", Handler: queryItemHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stockline/v1/resolver",
}

func resolveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(message.Request)
	if err := dec(in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	call := func(ctx context.Context, req any) (any, error) {
		r := req.(*message.Request)
		r.ID = requestID(ctx)
		resp, err := srv.(transport.Handler).Resolve(ctx, r)
		return reply(resp, err)
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: ResolveMethod}, call)
}

func queryItemHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(message.ItemRequest)
	if err := dec(in); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	call := func(ctx context.Context, req any) (any, error) {
		r := req.(*message.ItemRequest)
		r.ID = requestID(ctx)
		resp, err := srv.(transport.Handler).QueryItem(ctx, r)
		return reply(resp, err)
	}
	if interceptor == nil {
		return call(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: QueryItemMethod}, call)
}

// reply returns resp for resolved outcomes (including an unreachable
// backend, which the HTTP API also answers with 200) and a status error for
// everything else.
func reply[T any](resp *T, err error) (any, error) {
	if err == nil {
		return resp, nil
	}
	kind := apperr.KindOf(err)
	if kind == apperr.KindNetwork {
		return resp, nil
	}
	return nil, status.Error(Code(kind), apperr.MessageOf(err, err.Error()))
}

// Code maps an error kind to a gRPC status code.
func Code(k apperr.Kind) codes.Code {
	switch k {
	case apperr.KindInput:
		return codes.InvalidArgument
	case apperr.KindConfig:
		return codes.FailedPrecondition
	case apperr.KindNetwork:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

func requestID(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(requestIDKey); len(v) > 0 && v[0] != "" {
			return v[0]
		}
	}
	return uuid.NewString()
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	slog.Debug("grpc call", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
	return resp, err
}

// Client calls a remote stockline.v1.Resolver.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Resolve calls the remote Resolve method. Like the local pipeline it always
// returns a response; a failed call yields an error response and a
// classified error.
func (c *Client) Resolve(ctx context.Context, req *message.Request) (*message.Response, error) {
	out := new(message.Response)
	if err := c.cc.Invoke(ctx, ResolveMethod, req, out, grpc.CallContentSubtype(codecName)); err != nil {
		aerr := fromStatus(err)
		return &message.Response{
			Answer:    aerr.Message,
			Error:     aerr.Message,
			Timestamp: time.Now().UTC(),
		}, aerr
	}
	return out, nil
}

// QueryItem calls the remote QueryItem method.
func (c *Client) QueryItem(ctx context.Context, req *message.ItemRequest) (*message.ItemResponse, error) {
	out := new(message.ItemResponse)
	if err := c.cc.Invoke(ctx, QueryItemMethod, req, out, grpc.CallContentSubtype(codecName)); err != nil {
		aerr := fromStatus(err)
		return &message.ItemResponse{
			Item:      req.Item,
			Answer:    aerr.Message,
			Error:     aerr.Message,
			Timestamp: time.Now().UTC(),
		}, aerr
	}
	return out, nil
}

// fromStatus classifies a failed call. The server answers network outcomes
// with OK, so Unavailable here means the daemon itself could not be reached
// and is reported as internal.
func fromStatus(err error) *apperr.Error {
	st := status.Convert(err)
	var kind apperr.Kind
	switch st.Code() {
	case codes.InvalidArgument:
		kind = apperr.KindInput
	case codes.FailedPrecondition:
		kind = apperr.KindConfig
	default:
		kind = apperr.KindInternal
	}
	return &apperr.Error{Kind: kind, Message: st.Message(), Err: err}
}
