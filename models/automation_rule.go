package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Last-run outcomes reported on the admin surface.
const (
	RunStatusSuccess = "success"
	RunStatusPartial = "partial"
	RunStatusFailed  = "failed"
)

// AutomationRule drives one outreach automation: when it may fire, who it
// targets and how often the same customer may be contacted by it. Rules are
// soft-disabled, never hard-deleted, so their send history stays attributable.
type AutomationRule struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key"`
	SalonID         uuid.UUID `gorm:"type:uuid;index;not null"`
	CreatedByUserID uuid.UUID `gorm:"type:uuid;index"`

	Name    string `gorm:"not null"`
	Enabled bool   `gorm:"default:true;index"`

	TriggerKind  string  `gorm:"type:varchar(30);not null"`
	TriggerParam float64 `gorm:"default:0"` // days for visit triggers, amount for wallet
	RiskClass    string  `gorm:"type:varchar(20)"` // optional filter, empty = any

	CooldownDays int `gorm:"not null"`
	ValidUntil   *time.Time

	MaxTotalSends   int `gorm:"default:0"` // 0 = unlimited
	TotalSendsCount int `gorm:"default:0"`
	MaxDailySends   int `gorm:"default:0"` // 0 = unlimited
	DailySendsCount int `gorm:"default:0"`
	DailyCountDate  *time.Time

	// Send window in minutes from local midnight, inclusive start/exclusive end.
	SendWindowStart int   `gorm:"default:540"`  // 09:00
	SendWindowEnd   int   `gorm:"default:1200"` // 20:00
	SendDays        uint8 `gorm:"default:127"`  // weekday bitmask, bit 0 = Sunday

	ExcludeRecentDays int      `gorm:"default:0"` // skip customers seen within N days
	MinTotalSpent     float64  `gorm:"type:decimal(10,2);default:0.0"`
	WalletBalanceMax  *float64 `gorm:"type:decimal(10,2)"` // nil = no cap

	CouponCode  string
	CouponValue float64 `gorm:"type:decimal(10,2);default:0.0"`

	// Optional override of the global outcome-tracking window.
	TrackingDays *int

	LastRunAt     *time.Time
	LastRunStatus string `gorm:"type:varchar(20)"`
	LastRunError  string `gorm:"type:text"`
	LastRunSkips  JSONB  `gorm:"type:jsonb;default:'{}'"` // skip-reason histogram

	gorm.Model
}

func (r *AutomationRule) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}

// LimitedTotal reports whether the rule carries a lifetime ceiling.
func (r *AutomationRule) LimitedTotal() bool { return r.MaxTotalSends > 0 }

// LimitedDaily reports whether the rule carries a per-day ceiling.
func (r *AutomationRule) LimitedDaily() bool { return r.MaxDailySends > 0 }

// DailySentOn returns the dispatched count for the given day, accounting for
// the counter rollover when the stored date is stale.
func (r *AutomationRule) DailySentOn(day time.Time) int {
	if r.DailyCountDate == nil {
		return 0
	}
	y1, m1, d1 := r.DailyCountDate.Date()
	y2, m2, d2 := day.Date()
	if y1 != y2 || m1 != m2 || d1 != d2 {
		return 0
	}
	return r.DailySendsCount
}
