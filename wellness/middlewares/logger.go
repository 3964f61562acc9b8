package middlewares

import (
	"context"
	"net/http"
	"time"

	"wellness/wellness/utils/logging"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger writes one request.log entry per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		// the auth middleware runs further down the chain, so the user id is
		// picked up from a holder it can fill in
		holder := &userHolder{}
		r = r.WithContext(withUserHolder(r.Context(), holder))

		next.ServeHTTP(ww, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		}
		if holder.id != "" {
			fields = append(fields, zap.String("user_id", holder.id))
		}
		logging.RequestLogger.Info("request", fields...)
	})
}

type userHolder struct{ id string }

const userHolderKey contextKey = "log_user"

func withUserHolder(ctx context.Context, h *userHolder) context.Context {
	return context.WithValue(ctx, userHolderKey, h)
}

func noteUser(ctx context.Context, id string) {
	if h, ok := ctx.Value(userHolderKey).(*userHolder); ok {
		h.id = id
	}
}
