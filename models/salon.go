package models

import (
	"github.com/google/uuid"
)

type Salon struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	Name         string    `gorm:"not null"`
	Address      string
	WorkingHours JSONB `gorm:"type:jsonb;default:'{}'"`

	Users           []User           `gorm:"foreignKey:SalonID"`
	Customers       []Customer       `gorm:"foreignKey:SalonID"`
	AutomationRules []AutomationRule `gorm:"foreignKey:SalonID"`
	Invoices        []Invoice        `gorm:"foreignKey:SalonID"`
}
