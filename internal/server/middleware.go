package server

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/Brownie44l1/foundry-express/internal/request"
	"github.com/Brownie44l1/foundry-express/internal/response"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

// LoggingMiddleware logs all requests
func LoggingMiddleware(logger Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(w *response.Writer, req *request.Request) error {
			start := time.Now()

			err := next.Serve(w, req)

			fields := []Field{
				{"method", req.Method},
				{"target", req.Target},
				{"status", int(w.StatusCode())},
				{"duration_ms", time.Since(start).Milliseconds()},
				{"request_id", req.ID},
				{"client_ip", req.RemoteAddr},
			}
			if err != nil {
				logger.Warn("request failed", append(fields, Field{"error", err})...)
				return err
			}

			logger.Info("request handled", fields...)
			return nil
		})
	}
}

// RecoveryMiddleware turns a handler panic into a 500. If the response was
// already started the panic becomes an error and the connection is dropped.
func RecoveryMiddleware(logger Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(w *response.Writer, req *request.Request) (err error) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				logger.Error("panic recovered",
					Field{"error", rec},
					Field{"stack", string(debug.Stack())},
					Field{"request_id", req.ID},
					Field{"target", req.Target},
				)

				if w.Written() {
					err = fmt.Errorf("panic after response started: %v", rec)
					return
				}

				w.Header().Set("Connection", "close")
				err = w.ErrorResponse(response.StatusInternalServerError, "")
			}()

			return next.Serve(w, req)
		})
	}
}

// RequestIDMiddleware assigns req.ID, keeping a client supplied
// X-Request-ID, and echoes it in the response.
func RequestIDMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(w *response.Writer, req *request.Request) error {
			id := req.Header(RequestIDHeader)
			if id == "" || len(id) > 128 {
				id = uuid.NewString()
			}

			req.ID = id
			w.Header().Set(RequestIDHeader, id)

			return next.Serve(w, req)
		})
	}
}

// MetricsMiddleware records request metrics
func MetricsMiddleware(metrics *Metrics) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(w *response.Writer, req *request.Request) error {
			start := time.Now()

			err := next.Serve(w, req)

			statusCode := int(w.StatusCode())
			if err != nil && !w.Written() {
				statusCode = int(response.StatusInternalServerError)
			}
			metrics.RecordRequest(req.Method, statusCode, time.Since(start))

			return err
		})
	}
}
