package http

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/robertarktes/afterschool-bookings/internal/idempotency"
	"github.com/robertarktes/afterschool-bookings/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
)

const maxLoggedBody = 4 << 10

func RequestIDMiddleware(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

// RecoverMiddleware turns a panic into a generic 500 so no internals leak
// to the client.
func RecoverMiddleware(logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					observability.LoggerFromContext(r.Context(), logger).
						WithField("panic", rec).Error("recovered from panic")
					writeMessage(w, http.StatusInternalServerError, "Something went wrong!")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// LoggerMiddleware attaches a request-scoped logger, logs every request with
// its final status, and records the request counter.
func LoggerMiddleware(logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			entry := logger.WithFields(map[string]interface{}{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"url":        r.URL.RequestURI(),
				"ip":         clientIP(r),
			})
			if r.Body != nil && r.ContentLength > 0 && r.ContentLength <= maxLoggedBody {
				body, err := io.ReadAll(r.Body)
				r.Body.Close()
				if err == nil {
					entry.WithField("body", string(body)).Debug("request body")
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ctx := observability.ContextWithLogger(r.Context(), entry)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			observability.RequestsTotal.WithLabelValues(route, strconv.Itoa(status), r.Method).Inc()
			entry.WithFields(map[string]interface{}{
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("request completed")
		})
	}
}

// Limiter is satisfied by rateLimit.RateLimiter.
type Limiter interface {
	Allow(ctx context.Context, key string, rate int, period time.Duration) (bool, error)
}

// RateLimitMiddleware limits requests per client IP. It fails open when the
// limiter backend is unreachable.
func RateLimitMiddleware(rl Limiter, perMinute int, logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := rl.Allow(r.Context(), "ip:"+clientIP(r), perMinute, time.Minute)
			if err != nil {
				observability.LoggerFromContext(r.Context(), logger).WithError(err).Warn("rate limiter unavailable")
				ok = true
			}
			if !ok {
				observability.RateLimitExceeded.Inc()
				writeMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key. The key is claimed before the handler runs, so a duplicate
// arriving while the first request is in flight gets 409 instead of running
// again. Requests without the header pass straight through.
func IdempotencyMiddleware(idemp *idempotency.Idempotency, logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) < 16 {
				writeMessage(w, http.StatusBadRequest, "invalid Idempotency-Key")
				return
			}
			log := observability.LoggerFromContext(r.Context(), logger)
			scoped := r.URL.Path + ":" + key

			claimed, err := idemp.Claim(r.Context(), scoped)
			if err != nil {
				log.WithError(err).Warn("idempotency claim failed")
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				existing, err := idemp.Get(r.Context(), scoped)
				if err != nil {
					log.WithError(err).Warn("idempotency lookup failed")
				}
				if existing == nil || existing.Pending {
					writeMessage(w, http.StatusConflict, "a request with this Idempotency-Key is in progress")
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(existing.Status)
				w.Write(existing.Result)
				return
			}

			// The response is recorded even if the client has gone away.
			ctx := context.WithoutCancel(r.Context())
			recorded := false
			defer func() {
				if !recorded {
					if err := idemp.Release(ctx, scoped); err != nil {
						log.WithError(err).Warn("idempotency release failed")
					}
				}
			}()

			var buf bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&buf)
			next.ServeHTTP(ww, r)

			if status := ww.Status(); status != 0 && status < http.StatusInternalServerError {
				resp := idempotency.Response{Status: status, Result: buf.Bytes()}
				if err := idemp.Set(ctx, scoped, resp); err != nil {
					log.WithError(err).Warn("idempotency store failed")
					return
				}
				recorded = true
			}
		})
	}
}

func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		tracer := otel.Tracer("http")
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", ww.Status()))
		if ww.Status() >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(ww.Status()))
		}
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
