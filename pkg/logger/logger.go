// Package logger provides the service's structured logger built on log/slog.
//
// Handlers and services log through WithCtx so every line carries the
// request_id injected by the request-logging middleware:
//
//	log := logger.WithCtx(r.Context())
//	log.Info("product updated", "id", p.ID)
//	// → time=... level=INFO msg="product updated" request_id=6f1c... id=1
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// L is the process-wide base logger. It is replaced by Setup.
var L = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

// Options selects the output format and optional extra sinks.
type Options struct {
	Production bool
	Output     io.Writer
	Sinks      []slog.Handler
}

// Setup builds the base logger: JSON at INFO for production, text at DEBUG
// otherwise. Extra sinks (e.g. MongoHandler) receive every record as well.
func Setup(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var handler slog.Handler
	if opts.Production {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug})
	}

	if len(opts.Sinks) > 0 {
		handler = NewMultiHandler(append([]slog.Handler{handler}, opts.Sinks...)...)
	}

	L = slog.New(handler)
	slog.SetDefault(L)
	return L
}

type ctxKey struct{}

// WithCtx returns the request-scoped logger stored in ctx, or the base logger.
func WithCtx(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if log, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && log != nil {
			return log
		}
	}
	return L
}

// InjectLogger stores log in ctx. Called by the Logger middleware.
func InjectLogger(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, log)
}

func Debug(msg string, args ...any) { L.Debug(msg, args...) }
func Info(msg string, args ...any)  { L.Info(msg, args...) }
func Warn(msg string, args ...any)  { L.Warn(msg, args...) }
func Error(msg string, args ...any) { L.Error(msg, args...) }

// LevelFor picks the level of a request log line from its status code.
func LevelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
