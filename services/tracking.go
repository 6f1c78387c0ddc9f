// services/tracking.go
package services

import (
	"context"
	"errors"
	"time"

	"salonreach-backend/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Tracker applies outcome signals to open contact attempts: return
// detection, the expiry sweep and gateway delivery callbacks. All three
// paths are status-conditional updates, so they are idempotent and can
// never regress a terminal state.
type Tracker struct {
	attempts AttemptStore
	log      *logrus.Logger
}

func NewTracker(attempts AttemptStore, log *logrus.Logger) *Tracker {
	return &Tracker{attempts: attempts, log: log}
}

// MarkReturned closes the customer's open pending attempts after a
// qualifying visit, recording days-to-return and the attributed revenue.
// Attempts whose window had already elapsed are left for the sweep.
func (t *Tracker) MarkReturned(ctx context.Context, customerID uuid.UUID, visitAt time.Time, revenue float64) error {
	open, err := t.attempts.OpenPending(ctx, customerID)
	if err != nil {
		return err
	}
	for i := range open {
		attempt := open[i]
		if attempt.ExpiresAt != nil && visitAt.After(*attempt.ExpiresAt) {
			continue
		}
		days := 0
		if attempt.DispatchedAt != nil {
			days = utils.DaysBetween(*attempt.DispatchedAt, visitAt)
		}
		err := t.attempts.MarkReturned(ctx, attempt.ID, visitAt, days, revenue)
		if err != nil && !errors.Is(err, ErrAttemptNotOpen) {
			return err
		}
		t.log.WithFields(logrus.Fields{
			"attempt_id":     attempt.ID,
			"customer_id":    customerID,
			"days_to_return": days,
			"revenue":        revenue,
		}).Info("contact attempt returned")
	}
	return nil
}

// SweepExpired moves every pending attempt past its window to expired.
// Safe to run any number of times, in any order relative to other signals.
func (t *Tracker) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	n, err := t.attempts.SweepExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		t.log.WithField("expired", n).Info("expiry sweep completed")
	}
	return n, nil
}

// HandleDeliveryStatus reconciles an asynchronous gateway callback. A
// terminal delivery failure clears the attempt; everything else only
// updates the link's mirrored status.
func (t *Tracker) HandleDeliveryStatus(ctx context.Context, messageSID, status string) error {
	link, err := t.attempts.FindLinkBySID(ctx, messageSID)
	if err != nil {
		return err
	}
	if link == nil {
		t.log.WithField("message_sid", messageSID).Warn("delivery callback for unknown message")
		return nil
	}
	if err := t.attempts.SetDeliveryStatus(ctx, link.ID, status); err != nil {
		return err
	}
	if status == "failed" || status == "undelivered" {
		err := t.attempts.Clear(ctx, link.AttemptID, ClearDeliveryFailed)
		if err != nil && !errors.Is(err, ErrAttemptNotOpen) {
			return err
		}
	}
	return nil
}
