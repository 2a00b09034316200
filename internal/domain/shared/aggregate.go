package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity carries the identity and creation time of a persisted record
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
}

// BaseAggregateRoot collects domain events raised by an aggregate until
// the application layer publishes them
type BaseAggregateRoot struct {
	BaseEntity
	pending []DomainEvent
}

// NewBaseAggregateRoot creates a root with the given identity, stamped now
func NewBaseAggregateRoot(id uuid.UUID) BaseAggregateRoot {
	return BaseAggregateRoot{BaseEntity: BaseEntity{ID: id, CreatedAt: time.Now().UTC()}}
}

// AddDomainEvent queues an event
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// DomainEvents returns the queued events without clearing them
func (a *BaseAggregateRoot) DomainEvents() []DomainEvent {
	return a.pending
}

// PullDomainEvents returns the queued events and empties the queue
func (a *BaseAggregateRoot) PullDomainEvents() []DomainEvent {
	events := a.pending
	a.pending = nil
	return events
}
