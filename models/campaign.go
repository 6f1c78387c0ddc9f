package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Campaign is the reporting aggregate for one rule's outreach. Created
// lazily on the rule's first dispatch and reused for every later one, so
// the (customer, campaign) uniqueness of open attempts follows from the
// (customer, rule) uniqueness enforced on contact_attempts.
type Campaign struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key"`
	SalonID uuid.UUID `gorm:"type:uuid;index;not null"`
	RuleID  uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`
	Name    string    `gorm:"not null"`

	gorm.Model
}

// Gateway delivery statuses mirrored from the messaging provider callback.
const (
	DeliveryAccepted    = "accepted"
	DeliverySent        = "sent"
	DeliveryDelivered   = "delivered"
	DeliveryUndelivered = "undelivered"
	DeliveryFailed      = "failed"
)

// CampaignLink bridges a campaign to one contact attempt and carries the
// gateway message reference plus its delivery status.
type CampaignLink struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	CampaignID uuid.UUID `gorm:"type:uuid;index;not null"`
	AttemptID  uuid.UUID `gorm:"type:uuid;uniqueIndex;not null"`

	MessageSID     string `gorm:"index"` // empty when the gateway outcome was ambiguous
	DeliveryStatus string `gorm:"type:varchar(20)"`

	gorm.Model
}

func (c *Campaign) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

func (l *CampaignLink) BeforeCreate(tx *gorm.DB) (err error) {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return
}
