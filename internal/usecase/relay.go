package usecase

import (
	"context"
	"errors"
	"fmt"

	"SigRelay/internal/domain/models"
	drepo "SigRelay/internal/domain/repository"
	applogger "SigRelay/pkg/logger"
)

// SignalRelay fans a parsed signal out to the configured sinks: the Kafka
// topic for live consumers and the ClickHouse archive for history. Either
// sink may be absent; with both absent the relay is a no-op and the ring
// buffer remains the only view.
type SignalRelay struct {
	pub     drepo.SignalPublisher
	archive drepo.SignalArchive
	metrics drepo.Metrics
	l       *applogger.Logger
}

func NewSignalRelay(pub drepo.SignalPublisher, archive drepo.SignalArchive, metrics drepo.Metrics, l *applogger.Logger) *SignalRelay {
	return &SignalRelay{pub: pub, archive: archive, metrics: metrics, l: l}
}

// Relay delivers the signal to every sink. A failing sink does not stop
// the others; the combined error tells the pipeline to buffer and retry.
func (r *SignalRelay) Relay(ctx context.Context, s models.Signal) error {
	var errs []error
	if r.pub != nil {
		if err := r.pub.Publish(ctx, s); err != nil {
			r.metrics.RecordError("relay_publish")
			errs = append(errs, fmt.Errorf("publish: %w", err))
		}
	}
	if r.archive != nil {
		if err := r.archive.Append(ctx, s); err != nil {
			r.metrics.RecordError("relay_archive")
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}
	return errors.Join(errs...)
}

// History returns up to limit archived signals, most recent first.
func (r *SignalRelay) History(ctx context.Context, limit int) ([]models.Signal, error) {
	if r.archive == nil {
		return nil, fmt.Errorf("signal archive not configured")
	}
	return r.archive.Recent(ctx, limit)
}

// Close releases the sinks.
func (r *SignalRelay) Close() {
	if r.pub != nil {
		if err := r.pub.Close(); err != nil {
			r.l.Warn("relay: publisher close error", applogger.Error(err))
		}
	}
	if r.archive != nil {
		if err := r.archive.Close(); err != nil {
			r.l.Warn("relay: archive close error", applogger.Error(err))
		}
	}
}
