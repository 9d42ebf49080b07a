package logger

import (
	"context"
	"log/slog"
	"os"
)

const serviceName = "callcenter"

// New builds the process logger. Local and dev runs get readable text at debug level;
// everything else gets JSON at info.
func New(appEnv string) *slog.Logger {
	var h slog.Handler
	switch appEnv {
	case "local", "dev":
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	default:
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return slog.New(h).With("service", serviceName, "env", appEnv)
}

type ctxKey struct{}

func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the logger carried by ctx, or slog.Default().
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}

// ForCall is From scoped to one provider call.
func ForCall(ctx context.Context, callSID string) *slog.Logger {
	return From(ctx).With(slog.String("call_sid", callSID))
}
