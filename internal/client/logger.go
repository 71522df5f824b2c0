package client

import (
	"fmt"
	"log/slog"
)

// restyLogger routes resty's internal messages through slog.
type restyLogger struct {
	l *slog.Logger
}

func (r restyLogger) Errorf(format string, v ...any) {
	r.l.Error(fmt.Sprintf(format, v...), "component", "resty")
}

func (r restyLogger) Warnf(format string, v ...any) {
	r.l.Warn(fmt.Sprintf(format, v...), "component", "resty")
}

func (r restyLogger) Debugf(format string, v ...any) {
	r.l.Debug(fmt.Sprintf(format, v...), "component", "resty")
}
