package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a mapping lifecycle transition.
type EventType string

const (
	EventMappingCreated       EventType = "mapping.created"
	EventMappingUpdated       EventType = "mapping.updated"
	EventMappingStatusChanged EventType = "mapping.status_changed"
	EventMappingDeleted       EventType = "mapping.deleted"
)

// MappingEvent is published after a lifecycle operation commits.
type MappingEvent struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	ShortCode  string    `json:"short_code"`
	OwnerID    int64     `json:"owner_id"`
	ActorID    int64     `json:"actor_id"`
	IsActive   bool      `json:"is_active"`
	OccurredAt time.Time `json:"occurred_at"`
}
