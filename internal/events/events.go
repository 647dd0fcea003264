// Package events publishes sale lifecycle events after their transaction
// commits. Delivery is best effort.
package events

import (
	"context"
	"errors"
	"time"
)

const (
	SaleCreated = "sale.created"
	SaleUpdated = "sale.updated"
	SaleDeleted = "sale.deleted"
)

// Event is the payload shared by every transport.
type Event struct {
	Type       string    `json:"type"`
	CompanyID  int64     `json:"empresa_id"`
	EntityID   int64     `json:"entity_id"`
	ActorID    int64     `json:"usuario_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data,omitempty"`
}

// Publisher delivers an event.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi publishes to every publisher and joins their errors.
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
