package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CooldownRecord is the append-only spacing ledger. One row per accepted
// dispatch; the eligibility evaluator consults nothing else for spacing.
// Keyed so "most recent contact for this kind/customer" is an index range scan.
type CooldownRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	SalonID    uuid.UUID `gorm:"type:uuid;index;not null"`
	RuleID     uuid.UUID `gorm:"type:uuid;index;not null"`
	RuleKind   string    `gorm:"type:varchar(30);index:idx_cooldown_kind_customer,priority:1;not null"`
	CustomerID uuid.UUID `gorm:"type:uuid;index:idx_cooldown_kind_customer,priority:2;index:idx_cooldown_customer_sent,priority:1;not null"`
	SentAt     time.Time `gorm:"index:idx_cooldown_kind_customer,priority:3;index:idx_cooldown_customer_sent,priority:2;not null"`
}

func (r *CooldownRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}
