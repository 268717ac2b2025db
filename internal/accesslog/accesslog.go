// Package accesslog writes one structured log line per HTTP request,
// GraphQL operation and resolver group.
package accesslog

import (
	"context"

	"go.uber.org/zap"

	"github.com/hanpama/bookgraph/internal/eventbus"
	"github.com/hanpama/bookgraph/internal/events"
	"github.com/hanpama/bookgraph/internal/reqid"
)

// Register subscribes logger to the bus. Resolver groups are logged at debug
// level unless they failed.
func Register(logger *zap.Logger) (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			logger.Info("http request",
				requestID(ctx),
				zap.String("method", e.Request.Method),
				zap.String("path", e.Request.URL.Path),
				zap.Int("status", e.Status),
				zap.Int64("bytes", e.Bytes),
				zap.Duration("duration", e.Duration),
			)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GraphQLFinish) {
			fields := []zap.Field{
				requestID(ctx),
				zap.String("operation", e.OperationName),
				zap.String("type", e.OperationType),
				zap.String("state", e.State),
				zap.Int("errors", len(e.Errors)),
				zap.Duration("duration", e.Duration),
			}
			if e.State == "failed" {
				logger.Warn("graphql operation", fields...)
				return
			}
			logger.Info("graphql operation", fields...)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.BatchFinish) {
			fields := []zap.Field{
				requestID(ctx),
				zap.String("type", e.ObjectType),
				zap.String("field", e.Field),
				zap.String("kind", e.Kind),
				zap.Int("parents", e.Parents),
				zap.Int("failed", e.Failed),
				zap.Duration("duration", e.Duration),
			}
			if e.Err != nil {
				logger.Warn("resolver group failed", append(fields, zap.Error(e.Err))...)
				return
			}
			logger.Debug("resolver group", fields...)
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func requestID(ctx context.Context) zap.Field {
	id, _ := reqid.FromContext(ctx)
	return zap.String("request_id", id)
}
