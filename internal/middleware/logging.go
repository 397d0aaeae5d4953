package middleware

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/billbuddy/internal/metrics"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call
// and counts it by method and result code. It works on clients and handlers.
func LoggingInterceptor(m *metrics.Metrics) connect.UnaryInterceptorFunc {
	if m == nil {
		m = metrics.NewNop()
	}
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure
			userID := GetUserID(ctx) // empty if pre-auth
			method := path.Base(procedure)

			resp, err := next(ctx, req)

			duration := time.Since(start).Milliseconds()
			if err != nil {
				var connectErr *connect.Error
				if errors.As(err, &connectErr) {
					m.RemoteCalls.WithLabelValues(method, connectErr.Code().String()).Inc()
					slog.Warn("RPC error",
						"procedure", procedure,
						"code", connectErr.Code(),
						"error", connectErr.Message(),
						"user_id", userID,
						"client", req.Spec().IsClient,
						"duration_ms", duration,
					)
				} else {
					m.RemoteCalls.WithLabelValues(method, "error").Inc()
					slog.Error("RPC error",
						"procedure", procedure,
						"error", err,
						"user_id", userID,
						"client", req.Spec().IsClient,
						"duration_ms", duration,
					)
				}
			} else {
				m.RemoteCalls.WithLabelValues(method, "ok").Inc()
				slog.Info("RPC ok",
					"procedure", procedure,
					"user_id", userID,
					"client", req.Spec().IsClient,
					"duration_ms", duration,
				)
			}

			return resp, err
		}
	}
}
