package events

import "time"

// UserSynced announces that a user row was created or updated
type UserSynced struct {
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	SyncedAt    time.Time `json:"syncedAt"`
}

// UserDeleted announces that a user row was removed
type UserDeleted struct {
	UserID    string    `json:"userId"`
	DeletedAt time.Time `json:"deletedAt"`
}

const (
	suffixSynced  = "synced"
	suffixDeleted = "deleted"
)
