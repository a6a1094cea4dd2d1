package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/imagefinder/internal/progress"
)

// LogSink writes one debug record per event.
type LogSink struct {
	logger *zap.Logger
}

var _ progress.Sink = (*LogSink)(nil)

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("job_id", evt.JobID),
			zap.String("stage", string(evt.Stage)),
			zap.Time("ts", evt.TS),
		}
		switch evt.Stage {
		case progress.StagePageDone:
			fields = append(fields,
				zap.String("url", evt.Page.URL),
				zap.Int("depth", evt.Page.Depth),
				zap.String("status_class", string(evt.StatusClass)),
				zap.Int("images", evt.Page.Images),
				zap.Int("attempts", evt.Page.Attempts),
			)
			if evt.Page.Error != "" {
				fields = append(fields, zap.String("error", evt.Page.Error))
			}
		case progress.StageJobDone, progress.StageJobError:
			fields = append(fields, zap.Duration("dur", evt.Dur))
			if evt.Note != "" {
				fields = append(fields, zap.String("note", evt.Note))
			}
		}
		s.logger.Debug("progress event", fields...)
	}
	return nil
}

// Close implements progress.Sink; there is nothing to release.
func (s *LogSink) Close(context.Context) error {
	return nil
}
