package badger

import (
	"fmt"
	"log/slog"
	"strings"
)

// logger adapts slog to badger.Logger.
type logger struct {
	l *slog.Logger
}

func newLogger(l *slog.Logger) *logger {
	return &logger{l: l.With("component", "badger")}
}

func (b *logger) Errorf(format string, args ...any) {
	b.l.Error(msg(format, args))
}

func (b *logger) Warningf(format string, args ...any) {
	b.l.Warn(msg(format, args))
}

func (b *logger) Infof(format string, args ...any) {
	b.l.Info(msg(format, args))
}

func (b *logger) Debugf(format string, args ...any) {
	b.l.Debug(msg(format, args))
}

func msg(format string, args []any) string {
	return strings.TrimSpace(fmt.Sprintf(format, args...))
}
