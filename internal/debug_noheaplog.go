//go:build !debugheaplog

package internal

import (
	"context"
	"log/slog"
)

const HeapAllocDebugging = false

func LogEnabled(l *slog.Logger, lvl slog.Level) bool {
	return l != nil && l.Handler().Enabled(context.Background(), lvl)
}

// LogAttrs is a helper function that is used by all package loggers. It does
// nothing when l is nil. This file is excluded by the `debugheaplog` build
// tag, and the package provides no other definition of it.
func LogAttrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l != nil {
		l.LogAttrs(context.Background(), level, msg, attrs...)
	}
}
