package audit

import (
	"context"

	"go.uber.org/zap"
)

// LogSink writes events to the log.
type LogSink struct {
	logger *zap.Logger
}

var _ Sink = (*LogSink)(nil)

// NewLogSink creates a sink logging at info level.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

func (s *LogSink) Record(_ context.Context, event *LinkEvent) error {
	s.logger.Info("link "+string(event.Action),
		zap.String("code", event.Code),
		zap.String("url", event.URL),
		zap.Time("at", event.At),
		zap.String("actor", event.Actor),
		zap.String("clientIp", event.ClientIP),
		zap.String("referrer", event.Referrer),
	)

	return nil
}
