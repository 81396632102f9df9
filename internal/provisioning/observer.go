package provisioning

import (
	"fmt"
	"log/slog"
)

// Observer receives progress output from provisioning phases. It keeps the
// phases independent of the concrete logger and lets tests capture output.
type Observer interface {
	Printf(format string, v ...any)
	Warnf(format string, v ...any)
}

// consoleObserver logs through a structured logger.
type consoleObserver struct {
	log *slog.Logger
}

// NewConsoleObserver creates an Observer backed by the given logger.
func NewConsoleObserver(log *slog.Logger) Observer {
	return &consoleObserver{log: log}
}

func (o *consoleObserver) Printf(format string, v ...any) {
	o.log.Info(fmt.Sprintf(format, v...))
}

func (o *consoleObserver) Warnf(format string, v ...any) {
	o.log.Warn(fmt.Sprintf(format, v...))
}
