/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/friendsincode/haulroster/internal/events"
)

type driverInvalidator interface {
	InvalidateDriver(ctx context.Context, driverID string) error
}

// assignmentListener keeps this node's caches coherent with assignment
// changes made anywhere in the cluster and writes an audit line for each.
type assignmentListener struct {
	bus    events.Broker
	cache  driverInvalidator
	logger zerolog.Logger
}

func newAssignmentListener(bus events.Broker, c driverInvalidator, logger zerolog.Logger) *assignmentListener {
	return &assignmentListener{
		bus:    bus,
		cache:  c,
		logger: logger.With().Str("component", "assignment-listener").Logger(),
	}
}

func (l *assignmentListener) Run(ctx context.Context) {
	created := l.bus.Subscribe(events.EventAssignmentCreated)
	unassigned := l.bus.Subscribe(events.EventAssignmentUnassigned)
	rejected := l.bus.Subscribe(events.EventAssignmentRejected)
	defer func() {
		l.bus.Unsubscribe(events.EventAssignmentCreated, created)
		l.bus.Unsubscribe(events.EventAssignmentUnassigned, unassigned)
		l.bus.Unsubscribe(events.EventAssignmentRejected, rejected)
	}()

	l.logger.Info().Msg("assignment listener started")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info().Msg("assignment listener stopped")
			return
		case payload, ok := <-created:
			if !ok {
				return
			}
			l.handle(ctx, events.EventAssignmentCreated, payload)
		case payload, ok := <-unassigned:
			if !ok {
				return
			}
			l.handle(ctx, events.EventAssignmentUnassigned, payload)
		case payload, ok := <-rejected:
			if !ok {
				return
			}
			l.handle(ctx, events.EventAssignmentRejected, payload)
		}
	}
}

func (l *assignmentListener) handle(ctx context.Context, eventType events.EventType, payload events.Payload) {
	driverID, _ := payload["driver_id"].(string)
	blockID, _ := payload["block_id"].(string)

	ev := l.logger.Info().
		Str("event", string(eventType)).
		Str("driver_id", driverID).
		Str("block_id", blockID)
	if id, ok := payload["assignment_id"].(string); ok {
		ev = ev.Str("assignment_id", id)
	}
	if forced, ok := payload["forced"].(bool); ok && forced {
		ev = ev.Bool("forced", true)
	}
	ev.Msg("assignment audit")

	if eventType == events.EventAssignmentRejected || l.cache == nil || driverID == "" {
		return
	}
	if err := l.cache.InvalidateDriver(ctx, driverID); err != nil {
		l.logger.Debug().Err(err).Str("driver_id", driverID).Msg("cache invalidation failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
