package cerr

import (
	"context"

	"connectrpc.com/connect"
)

// errorInterceptor turns handler errors into connect errors carrying only the
// caller facing message. The underlying cause stays in the log context.
type errorInterceptor struct{}

func NewConvertConnectErrorInterceptor() connect.Interceptor {
	return errorInterceptor{}
}

func (errorInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		resp, err := next(ctx, req)
		if err != nil {
			return nil, ExtractConnectError(ctx, err)
		}
		return resp, nil
	}
}

func (errorInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (errorInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		return ExtractConnectError(ctx, next(ctx, conn))
	}
}
