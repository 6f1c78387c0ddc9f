// services/stores.go
package services

import (
	"context"
	"time"

	"salonreach-backend/models"

	"github.com/google/uuid"
)

// CooldownHistory is everything the eligibility evaluator consults for
// spacing: the most recent ledger entry for the rule's kind and the most
// recent entry of any kind, per customer.
type CooldownHistory struct {
	LastRuleContact *time.Time
	LastAnyContact  *time.Time
}

// CustomerFeed is the read-only attribute source. One query method per
// trigger kind keeps candidate resolution in the database.
type CustomerFeed interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	InactiveSince(ctx context.Context, salonID uuid.UUID, minDays int, riskClass string, now time.Time) ([]models.Customer, error)
	SingleVisitAged(ctx context.Context, salonID uuid.UUID, minDays int, now time.Time) ([]models.Customer, error)
	WalletAbove(ctx context.Context, salonID uuid.UUID, min float64) ([]models.Customer, error)
	AnniversaryWithin(ctx context.Context, salonID uuid.UUID, days int, now time.Time) ([]models.Customer, error)
}

// CustomerWriter is the one write the core performs on customer data.
type CustomerWriter interface {
	Blacklist(ctx context.Context, customerID uuid.UUID, reason string) error
}

// WeatherFeed tells the weather trigger whether a day qualifies as a
// quiet (bad-weather) day. External collaborator; a nil feed never fires.
type WeatherFeed interface {
	IsBadWeatherDay(ctx context.Context, day time.Time) (bool, error)
}

type RuleStore interface {
	Enabled(ctx context.Context) ([]models.AutomationRule, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error)

	// ReserveSend atomically increments the rule's counters, failing with
	// ErrSendQuotaExceeded when either ceiling would be crossed. Serialized
	// per rule by the database; never read-then-write.
	ReserveSend(ctx context.Context, ruleID uuid.UUID, day time.Time) error
	// ReleaseSend undoes a reservation whose dispatch permanently failed.
	ReleaseSend(ctx context.Context, ruleID uuid.UUID, day time.Time) error

	RecordRun(ctx context.Context, ruleID uuid.UUID, at time.Time, status, errMsg string, skips map[string]int) error
}

type CooldownStore interface {
	HistoryFor(ctx context.Context, rule *models.AutomationRule, customerID uuid.UUID) (CooldownHistory, error)
}

type AttemptStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.ContactAttempt, error)
	CreateQueued(ctx context.Context, a *models.ContactAttempt) error
	// CreateCleared records an audit row for an automation dispatch that was
	// permanently rejected before an attempt existed.
	CreateCleared(ctx context.Context, a *models.ContactAttempt, reason string) error
	OldestQueued(ctx context.Context, limit int) ([]models.ContactAttempt, error)

	// Clear moves a queued or pending attempt to cleared; ErrAttemptNotOpen
	// if it already reached a terminal state.
	Clear(ctx context.Context, attemptID uuid.UUID, reason string) error
	// ClearQueued is Clear restricted to not-yet-dispatched entries.
	ClearQueued(ctx context.Context, attemptID uuid.UUID, reason string) error

	OpenPending(ctx context.Context, customerID uuid.UUID) ([]models.ContactAttempt, error)
	MarkReturned(ctx context.Context, attemptID uuid.UUID, visitAt time.Time, daysToReturn int, revenue float64) error
	SweepExpired(ctx context.Context, now time.Time) (int64, error)

	FindLinkBySID(ctx context.Context, sid string) (*models.CampaignLink, error)
	SetDeliveryStatus(ctx context.Context, linkID uuid.UUID, status string) error
}

// DispatchRecord is the unit-of-work payload for one accepted dispatch:
// attempt, campaign link and cooldown record land together or not at all.
type DispatchRecord struct {
	Customer     *models.Customer
	Rule         *models.AutomationRule
	AttemptID    *uuid.UUID // existing queued manual entry, nil for automation
	Source       models.PrioritySource
	MessageSID   string // empty when the gateway outcome was ambiguous
	Now          time.Time
	TrackingDays int
}

type DispatchRecorder interface {
	RecordDispatch(ctx context.Context, rec DispatchRecord) (*models.ContactAttempt, error)
}
