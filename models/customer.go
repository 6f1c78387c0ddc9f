package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Risk classifications assigned by the analytics pipeline. The automation
// core treats these as opaque labels; rules filter on them.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Customer attributes are owned by the CRM side. The automation core only
// reads them, with the single exception of the opt-out blacklist write.
type Customer struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()"`
	SalonID         uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_salon_phone,priority:1;not null"`
	CreatedByUserID uuid.UUID `gorm:"type:uuid;index"`

	Name        string `gorm:"not null"`
	Phone       string `gorm:"not null;uniqueIndex:idx_salon_phone,priority:2"`
	Email       string
	Anniversary *time.Time
	Notes       string

	RiskClass     string  `gorm:"type:varchar(20);index"` // low, medium, high
	TotalVisits   int     `gorm:"default:0"`
	TotalSpent    float64 `gorm:"type:decimal(10,2);default:0.0"`
	WalletBalance float64 `gorm:"type:decimal(10,2);default:0.0"`
	LastVisit     *time.Time

	Blacklisted     bool `gorm:"default:false;index"`
	BlacklistReason string
	BlacklistedAt   *time.Time

	IsActive bool `gorm:"default:true"`

	gorm.Model
}

func (c *Customer) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}
