package domain

import "time"

// RoleChangeRecord is a single entry in the append-only role change log.
// Records are created exactly once, in the same transaction as the role
// mutation they describe, and are never updated or deleted.
type RoleChangeRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ChangedByID  string    `json:"changed_by_id"`
	PreviousRole string    `json:"previous_role"`
	NewRole      string    `json:"new_role"`
	ChangedAt    time.Time `json:"changed_at"`
	Reason       *string   `json:"reason,omitempty"`

	// Seq is a storage-assigned monotonic key used to break timestamp ties
	// when ordering history newest-first.
	Seq int64 `json:"-"`
}
