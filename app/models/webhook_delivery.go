package models

import "time"

// WebhookDelivery stores one inbound provider notification with deduplication
// metadata. The unique index on the provider delivery id is the final safety
// net beneath the processor's transactional logic: an insert conflict is an
// expected outcome, handled like "already processed". Rows are retained
// indefinitely for audit.
type WebhookDelivery struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	ProviderDeliveryID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_webhook_deliveries_provider_delivery" json:"provider_delivery_id"`
	EventType          string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	RequestID          uint       `gorm:"default:0;index" json:"request_id"`
	Payload            string     `gorm:"type:longtext;not null" json:"payload"`
	Processed          bool       `gorm:"default:false;index" json:"processed"`
	ProcessedAt        *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingNote     string     `gorm:"type:text" json:"processing_note"`
	CreatedAt          time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
