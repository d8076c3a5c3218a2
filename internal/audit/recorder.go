package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/safego"
	"github.com/projecthub/projecthub/internal/telemetry"
)

// DefaultWriteTimeout bounds a single asynchronous audit write.
const DefaultWriteTimeout = 5 * time.Second

// Store persists audit rows. *repositories.AuditRepository satisfies it.
type Store interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// Recorder writes audit events in the background
type Recorder struct {
	store    Store
	shipper  Shipper
	enabled  bool
	timeout  time.Duration
	inflight safego.Group
}

// NewRecorder creates a Recorder. shipper may be nil. A disabled recorder
// drops every event.
func NewRecorder(store Store, shipper Shipper, enabled bool) *Recorder {
	return &Recorder{
		store:   store,
		shipper: shipper,
		enabled: enabled,
		timeout: DefaultWriteTimeout,
	}
}

// Record persists ev asynchronously and returns immediately. The write runs on
// its own deadline, detached from ctx, so it survives the request finishing.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil || !r.enabled {
		return
	}
	base := context.WithoutCancel(ctx)
	r.inflight.Go("audit:"+ev.Action, func() {
		writeCtx, cancel := context.WithTimeout(base, r.timeout)
		defer cancel()
		r.write(writeCtx, ev)
	})
}

func (r *Recorder) write(ctx context.Context, ev Event) {
	row, err := ev.row()
	if err != nil {
		r.fail(ev, "encode", err)
		return
	}
	if err := r.store.Create(ctx, row); err != nil {
		r.fail(ev, "persist", err)
		return
	}
	telemetry.AuditEventsTotal.WithLabelValues(ev.Action).Inc()

	if r.shipper != nil {
		if err := r.shipper.Ship(ctx, ev.entry(row)); err != nil {
			r.fail(ev, "ship", err)
		}
	}
}

func (r *Recorder) fail(ev Event, stage string, err error) {
	telemetry.AuditFailuresTotal.Inc()
	slog.Error("audit event dropped",
		"action", ev.Action,
		"entity_type", ev.EntityType,
		"entity_id", ev.EntityID,
		"stage", stage,
		"error", err,
	)
}

// Close waits for in-flight writes until ctx is done, then closes the shipper.
func (r *Recorder) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	err := r.inflight.Wait(ctx)
	if err != nil {
		slog.Warn("audit writes still in flight at shutdown", "error", err)
	}
	if r.shipper != nil {
		if cerr := r.shipper.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
