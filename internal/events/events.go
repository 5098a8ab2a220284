// Package events describes reservation and table changes that are fanned out
// to other processes after a transaction commits.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	ReservationCreated       Type = "reservation.created"
	ReservationUpdated       Type = "reservation.updated"
	ReservationStatusChanged Type = "reservation.status_changed"
	TableCreated             Type = "table.created"
	TableSeated              Type = "table.seated"
	TableFreed               Type = "table.freed"
)

type Event struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	ReservationID int64     `json:"reservation_id,omitempty"`
	TableID       int64     `json:"table_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func New(t Type, reservationID, tableID int64, status string) Event {
	return Event{
		ID:            uuid.NewString(),
		Type:          t,
		ReservationID: reservationID,
		TableID:       tableID,
		Status:        status,
		OccurredAt:    time.Now().UTC(),
	}
}

// TouchesTables reports whether the event changes table occupancy or the
// table list.
func (e Event) TouchesTables() bool {
	switch e.Type {
	case TableCreated, TableSeated, TableFreed:
		return true
	}
	return e.TableID != 0
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Multi publishes to every non-nil publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
