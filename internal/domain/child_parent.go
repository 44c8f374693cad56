package domain

import "time"

// ChildParent vincula una cuenta con la cuenta que la refirio.
type ChildParent struct {
	ID               string    `json:"id"`
	ChildID          string    `json:"child_id"`
	ParentID         string    `json:"parent_id,omitempty"`
	IsParentVerified bool      `json:"is_parent_verified"`
	CreatedAt        time.Time `json:"created_at"`
}
