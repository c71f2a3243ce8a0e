package socket

import (
	"log/slog"

	"github.com/microtcp/microtcp/internal"
)

// logger is a thin wrapper over *slog.Logger that no-ops cleanly when no
// logger has been configured, so call sites never need a nil check.
type logger struct {
	l *slog.Logger
}

func argsToAttrs(args []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, _ := args[i].(string)
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return attrs
}

func (lg logger) trace(msg string, args ...any) {
	if internal.LogEnabled(lg.l, slog.LevelDebug-4) {
		internal.LogAttrs(lg.l, slog.LevelDebug-4, msg, argsToAttrs(args)...)
	}
}

func (lg logger) debug(msg string, args ...any) {
	if internal.LogEnabled(lg.l, slog.LevelDebug) {
		internal.LogAttrs(lg.l, slog.LevelDebug, msg, argsToAttrs(args)...)
	}
}

func (lg logger) logerr(msg string, args ...any) {
	if internal.LogEnabled(lg.l, slog.LevelError) {
		internal.LogAttrs(lg.l, slog.LevelError, msg, argsToAttrs(args)...)
	}
}
