package bootloader

import (
	"context"
	"fmt"
	"log/slog"
)

// logSink forwards diagnostics to an optional slog.Logger
type logSink struct {
	logger *slog.Logger
}

func (l logSink) logerr(msg string, attrs ...slog.Attr) {
	l.logattrs(slog.LevelError, msg, attrs...)
}

func (l logSink) warn(msg string, attrs ...slog.Attr) {
	l.logattrs(slog.LevelWarn, msg, attrs...)
}

func (l logSink) info(msg string, attrs ...slog.Attr) {
	l.logattrs(slog.LevelInfo, msg, attrs...)
}

func (l logSink) debug(msg string, attrs ...slog.Attr) {
	l.logattrs(slog.LevelDebug, msg, attrs...)
}

func (l logSink) logattrs(level slog.Level, msg string, attrs ...slog.Attr) {
	if l.logger == nil {
		return
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

func addrAttr(key string, addr uint32) slog.Attr {
	return slog.String(key, fmt.Sprintf("0x%08X", addr))
}
