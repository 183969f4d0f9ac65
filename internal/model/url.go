package model

import (
	"time"

	"github.com/google/uuid"
)

// URLMapping represents a short code bound to a destination URL
type URLMapping struct {
	ID          uuid.UUID `json:"id"`
	ShortCode   string    `json:"short_code"`
	Destination string    `json:"url"`
	OwnerID     int64     `json:"user_id"`
	VisitCount  int64     `json:"visit_count"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Actor is the authenticated caller of a core operation.
type Actor struct {
	ID      int64
	IsAdmin bool
}

// Scope is the ownership predicate a store applies to a keyed mutation.
// AnyOwner matches every mapping; otherwise only mappings owned by OwnerID match.
type Scope struct {
	AnyOwner bool
	OwnerID  int64
}

// Permits reports whether m falls inside the scope.
func (s Scope) Permits(m *URLMapping) bool {
	if m == nil {
		return false
	}
	return s.AnyOwner || m.OwnerID == s.OwnerID
}

// CreateURLRequest represents the request body for creating a short URL
type CreateURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// EditURLRequest represents the request body for changing a destination
type EditURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// ChangeStatusRequest represents the request body for toggling a mapping.
// IsActive is a pointer so that an explicit false is distinguishable from a missing field.
type ChangeStatusRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// URLResponse represents the full mapping returned by the API
type URLResponse struct {
	ID          string `json:"id"`
	ShortCode   string `json:"short_code"`
	ShortURL    string `json:"short_url"`
	Destination string `json:"url"`
	OwnerID     int64  `json:"user_id"`
	VisitCount  int64  `json:"visit_count"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
