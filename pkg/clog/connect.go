package clog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
)

type connectConfig struct {
	Filter func(spec connect.Spec) bool
}

type ConnectOption interface {
	apply(*connectConfig)
}

type connectOptionFunc func(*connectConfig)

func (o connectOptionFunc) apply(c *connectConfig) {
	o(c)
}

func WithConnectFilter(filter func(connect.Spec) bool) ConnectOption {
	return connectOptionFunc(func(cfg *connectConfig) {
		cfg.Filter = filter
	})
}

func DefaultConnectHealthCheckUnaryFilter(spec connect.Spec) bool {
	return spec.Procedure != "/grpc.health.v1.Health/Check"
}

type slogConnectInterceptor struct {
	cfg connectConfig
}

// NewSlogConnectInterceptor logs one line per unary call and per handled
// stream, at a level derived from the resulting connect code.
func NewSlogConnectInterceptor(opts ...ConnectOption) connect.Interceptor {
	cfg := connectConfig{}
	for _, opt := range opts {
		opt.apply(&cfg)
	}
	return &slogConnectInterceptor{cfg: cfg}
}

func (s *slogConnectInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		startTime := time.Now()
		newCtx := ContextWithSlog(ctx)
		AddAttributes(newCtx, map[string]any{
			"method":      req.HTTPMethod(),
			"procedure":   req.Spec().Procedure,
			"stream_type": req.Spec().StreamType.String(),
		})
		if origin := req.Header().Get("Origin"); origin != "" {
			AddOrigin(newCtx, origin)
		}
		resp, err := next(newCtx, req)
		if s.cfg.Filter != nil && !s.cfg.Filter(req.Spec()) {
			return resp, err
		}
		s.finish(newCtx, startTime, err)
		return resp, err
	}
}

func (s *slogConnectInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (s *slogConnectInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		startTime := time.Now()
		newCtx := ContextWithSlog(ctx)
		AddAttributes(newCtx, map[string]any{
			"procedure":   conn.Spec().Procedure,
			"stream_type": conn.Spec().StreamType.String(),
		})
		slog.InfoContext(newCtx, "Connected")

		err := next(newCtx, conn)
		if s.cfg.Filter != nil && !s.cfg.Filter(conn.Spec()) {
			return err
		}
		s.finish(newCtx, startTime, err)
		return err
	}
}

func (s *slogConnectInterceptor) finish(ctx context.Context, startTime time.Time, err error) {
	if err == nil {
		AddAttributes(ctx, map[string]any{
			"code":     "ok",
			"duration": time.Since(startTime),
		})
		slog.InfoContext(ctx, "Finished")
		return
	}
	var cerr *connect.Error
	if !errors.As(err, &cerr) {
		cerr = connect.NewError(connect.CodeUnknown, err)
	}
	AddAttributes(ctx, map[string]any{
		"code":     cerr.Code().String(),
		"duration": time.Since(startTime),
	})
	Log(ctx, ConnectCodeToLevel(cerr.Code()), cerr.Message())
}
