package log

import (
	stdlog "log"
	"strings"
)

// ToStdLogger converts a Logger to a standard library *log.Logger writing at
// the given level. net/http.Server.ErrorLog is the main consumer.
func ToStdLogger(logger Logger, level Level) *stdlog.Logger {
	return stdlog.New(&leveledLogAdapter{logger: logger, level: level}, "", 0)
}

type leveledLogAdapter struct {
	logger Logger
	level  Level
}

func (a *leveledLogAdapter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")

	switch a.level {
	case DebugLevel:
		a.logger.Debug(msg)
	case WarnLevel:
		a.logger.Warn(msg)
	case ErrorLevel, FatalLevel:
		a.logger.Error(msg)
	default:
		a.logger.Info(msg)
	}

	return len(p), nil
}
