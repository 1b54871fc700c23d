package handlers

import (
	"context"
	"time"

	"media-lite/internal/converter"
	"media-lite/internal/transcoder"
)

// Pinger reports whether the catalog store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConverterControl is the part of the converter the endpoints drive.
type ConverterControl interface {
	Status() converter.Status
	Trigger()
	Reconcile(ctx context.Context) int
}

// Handlers holds the dependencies of the ops endpoints.
type Handlers struct {
	db        Pinger
	converter ConverterControl
	tools     transcoder.Transcoder
	startTime time.Time
}

// New creates Handlers. db may be nil when no catalog is configured.
func New(db Pinger, conv ConverterControl, tools transcoder.Transcoder) *Handlers {
	return &Handlers{
		db:        db,
		converter: conv,
		tools:     tools,
		startTime: time.Now(),
	}
}
