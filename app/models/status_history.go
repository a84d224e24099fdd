package models

import "time"

// ActorSystem is the sentinel actor for transitions driven by the system
// itself (e.g. the payment webhook processor) rather than a user.
const ActorSystem = "system"

// StatusHistoryEntry is one append-only audit record per status transition.
// Rows are written in the same transaction as the status change and are never
// mutated or deleted.
type StatusHistoryEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RequestID uint      `gorm:"not null;index:idx_status_history_request_time,priority:1" json:"request_id"`
	OldStatus string    `gorm:"type:varchar(50);not null" json:"old_status"`
	NewStatus string    `gorm:"type:varchar(50);not null" json:"new_status"`
	Actor     string    `gorm:"type:varchar(50);not null" json:"actor"`
	Reason    string    `gorm:"type:text" json:"reason"`
	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_status_history_request_time,priority:2;index" json:"created_at"`
}
