/*
 *    Copyright 2025 Jeff Galyan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

package reqbody

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxBodyBytes is the body cap Logger and Recover use when none is set.
const DefaultMaxBodyBytes int64 = 4096

// Middleware wraps an http.Handler. It has the shape chi and most net/http
// routers expect, so the middlewares in this package mount on them directly.
type Middleware func(http.Handler) http.Handler

// Chain wraps h in mw. The first middleware is the outermost.
func Chain(h http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}

// LoggerConfig configures the Logger middleware.
type LoggerConfig struct {
	// Logger is the slog.Logger used for output. nil uses slog.Default().
	Logger *slog.Logger

	// Sanitize enables redaction of query parameters, headers, and body fields
	// in log output. nil means no sanitization.
	Sanitize *SanitizeConfig

	// MaxBodyBytes caps how much of the body is logged. 0 uses
	// DefaultMaxBodyBytes; a negative value logs the whole body.
	MaxBodyBytes int64

	// SkipBody disables body logging.
	SkipBody bool

	// Buffering, when set, makes the body seekable before the handler runs so
	// it can still be logged after the handler consumed it. Leave nil when a
	// Buffering middleware is already installed upstream.
	Buffering *BufferingConfig
}

// Logger provides structured access logging with request id and request body.
// The body is read after the handler returns, from position 0, and the
// body's read position is left where the handler left it.
func Logger(cfg LoggerConfig) Middleware {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var san *Sanitizer
	if cfg.Sanitize != nil {
		san = NewSanitizer(*cfg.Sanitize)
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody == 0 {
		maxBody = DefaultMaxBodyBytes
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			r = r.WithContext(WithRequestID(r.Context(), id))
			w.Header().Set(RequestIDHeader, id)

			if cfg.Buffering != nil && !cfg.SkipBody {
				if sb, created := enableBuffering(w, r, *cfg.Buffering); created {
					defer func() {
						if err := sb.Close(); err != nil {
							logger.Debug("error closing buffered body", slog.String("error", err.Error()))
						}
					}()
				}
			}

			rec := newStatusRecorder(w)
			start := time.Now()
			next.ServeHTTP(rec, r)
			dur := time.Since(start)

			attrs := []slog.Attr{
				slog.String("id", id),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			}
			if q := san.Query(r.URL.RawQuery); q != "" {
				attrs = append(attrs, slog.String("query", q))
			}
			if h := san.Headers(r.Header); h != nil {
				attrs = append(attrs, slog.Any("headers", h))
			}
			attrs = append(attrs,
				slog.Int("status", rec.Status()),
				slog.Int64("bytes_out", rec.bytes),
				slog.String("duration", dur.String()),
			)
			if !cfg.SkipBody {
				attrs = append(attrs, bodyAttrs(r, maxBody, san, logger)...)
			}
			logger.LogAttrs(r.Context(), slog.LevelInfo, "request", attrs...)
		})
	}
}

// bodyAttrs reads the request body for logging. Failures are logged and
// never reach the client.
func bodyAttrs(r *http.Request, maxBytes int64, san *Sanitizer, logger *slog.Logger) []slog.Attr {
	if r.Body == nil {
		return nil
	}
	// The client may be gone by now; the buffered bytes are still readable.
	ctx := context.WithoutCancel(r.Context())
	res, err := Read(ctx, r.Body, r.ContentLength, maxBytes)
	if err != nil {
		id, _ := RequestID(ctx)
		logger.Warn("request body unreadable", slog.String("id", id), slog.Any("err", err))
		return nil
	}
	switch res.Kind {
	case Unavailable:
		return []slog.Attr{slog.Bool("body_unavailable", true)}
	case Empty:
		return nil
	}
	res.Text = san.Body(r.Header.Get("Content-Type"), res.Text)
	attrs := []slog.Attr{slog.Any("body", res)}
	if res.Truncated() {
		attrs = append(attrs, slog.Int64("body_omitted", res.Omitted))
	}
	return attrs
}

// Recover gracefully handles panics and returns 500. The panic is logged with
// up to maxBodyBytes of the request body (0 uses DefaultMaxBodyBytes), which
// requires the body to be buffered upstream.
func Recover(logger *slog.Logger, maxBodyBytes int64) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBodyBytes == 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			defer func() {
				rv := recover()
				if rv == nil {
					return
				}
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				attrs := []slog.Attr{
					slog.Any("err", rv),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				}
				if id, ok := RequestID(r.Context()); ok {
					attrs = append(attrs, slog.String("id", id))
				}
				attrs = append(attrs, bodyAttrs(r, maxBodyBytes, nil, logger)...)
				logger.LogAttrs(r.Context(), slog.LevelError, "panic recovered", attrs...)
				if !rec.wrote {
					WriteError(rec, http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

// Timeout puts a deadline of d on the request context. Body reads through
// Read and ReadRequest stop with the context error once it passes.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if d > 0 {
				ctx, cancel := context.WithTimeout(r.Context(), d)
				defer cancel()
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}
