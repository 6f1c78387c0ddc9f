package models

import (
	"time"

	"github.com/google/uuid"
)

// Invoice records a completed visit. Creating one is the return-detection
// signal the contact tracker listens for.
type Invoice struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	SalonID         uuid.UUID `gorm:"type:uuid;index;not null"`
	CreatedByUserID uuid.UUID `gorm:"type:uuid;index;not null"`

	InvoiceNumber string    `gorm:"uniqueIndex;not null"`
	CustomerID    uuid.UUID `gorm:"type:uuid;index;not null"`
	InvoiceDate   time.Time `gorm:"default:CURRENT_TIMESTAMP"`

	Total         float64 `gorm:"type:decimal(10,2);not null"`
	PaymentMethod string
	Notes         string
}
