package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AttemptStatus string

// Attempt lifecycle. Transitions only move forward; see CanTransitionTo.
const (
	AttemptQueued   AttemptStatus = "queued"  // manual inclusion awaiting dispatch
	AttemptPending  AttemptStatus = "pending" // dispatched, awaiting outcome
	AttemptReturned AttemptStatus = "returned"
	AttemptExpired  AttemptStatus = "expired"
	AttemptCleared  AttemptStatus = "cleared"
)

// Terminal reports whether no further transition is allowed from s.
func (s AttemptStatus) Terminal() bool {
	switch s {
	case AttemptReturned, AttemptExpired, AttemptCleared:
		return true
	}
	return false
}

// CanTransitionTo enforces the forward-only lifecycle:
// queued -> pending -> returned|expired, and queued|pending -> cleared.
func (s AttemptStatus) CanTransitionTo(next AttemptStatus) bool {
	switch s {
	case AttemptQueued:
		return next == AttemptPending || next == AttemptCleared
	case AttemptPending:
		return next == AttemptReturned || next == AttemptExpired || next == AttemptCleared
	}
	return false
}

type PrioritySource string

const (
	SourceAutomation      PrioritySource = "automation"
	SourceManualInclusion PrioritySource = "manual_inclusion"
)

// ContactAttempt is one tracked outbound contact for one customer under one
// rule's campaign, from creation through its resolved business outcome.
// A partial unique index (created alongside AutoMigrate) guarantees at most
// one queued/pending attempt per (rule, customer) pair.
type ContactAttempt struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key"`
	SalonID    uuid.UUID  `gorm:"type:uuid;index;not null"`
	CustomerID uuid.UUID  `gorm:"type:uuid;index;not null"`
	RuleID     uuid.UUID  `gorm:"type:uuid;index;not null"`
	CampaignID *uuid.UUID `gorm:"type:uuid;index"` // assigned at dispatch

	Status         AttemptStatus  `gorm:"type:varchar(20);index;not null"`
	PrioritySource PrioritySource `gorm:"type:varchar(30)"`

	// Set at enqueue for manual inclusions; honored only when the configured
	// bypass scope allows it. Never affects the global spacing cooldown.
	BypassRuleCooldown bool `gorm:"default:false"`

	ClearReason string `gorm:"type:varchar(40)"`

	DispatchedAt  *time.Time
	ExpiresAt     *time.Time `gorm:"index"`
	ReturnedAt    *time.Time
	DaysToReturn  *int
	ReturnRevenue *float64 `gorm:"type:decimal(10,2)"`

	gorm.Model
}

func (a *ContactAttempt) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}
