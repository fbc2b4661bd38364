package models

import "github.com/google/uuid"

// NewID returns a time-ordered (version 7) id. Lists sort by created_at then
// id, so rows written within the same timestamp still page in creation order.
func NewID() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}
