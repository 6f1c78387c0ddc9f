// services/dispatcher.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salonreach-backend/config"
	"salonreach-backend/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Clear reasons produced by the dispatch path, alongside the eligibility
// reasons reused for manually queued entries.
const (
	ClearInvalidNumber  = "invalid_number"
	ClearOptedOut       = "opted_out"
	ClearDeliveryFailed = "delivery_failed"
	ClearRuleDisabled   = "rule_disabled"
	ClearCancelled      = "cancelled"
)

// Dispatcher owns the send itself and the bookkeeping around it. A quota
// slot is reserved before the gateway call so the send ceilings stay hard
// even when the gateway succeeds; permanent rejections give the slot back.
type Dispatcher struct {
	gateway   Gateway
	rules     RuleStore
	attempts  AttemptStore
	recorder  DispatchRecorder
	customers CustomerWriter
	settings  config.AutomationSettings
	log       *logrus.Logger
}

func NewDispatcher(
	gateway Gateway,
	rules RuleStore,
	attempts AttemptStore,
	recorder DispatchRecorder,
	customers CustomerWriter,
	settings config.AutomationSettings,
	log *logrus.Logger,
) *Dispatcher {
	return &Dispatcher{
		gateway:   gateway,
		rules:     rules,
		attempts:  attempts,
		recorder:  recorder,
		customers: customers,
		settings:  settings,
		log:       log,
	}
}

// Dispatch sends rule's message to customer and records the outcome.
// attemptID names an existing queued manual entry, nil for automation.
// Returns ErrSendQuotaExceeded when the rule's ceilings block the send.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	customer *models.Customer,
	rule *models.AutomationRule,
	source models.PrioritySource,
	attemptID *uuid.UUID,
	now time.Time,
) error {
	if err := d.rules.ReserveSend(ctx, rule.ID, now); err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.settings.GatewayTimeout)
	sid, err := d.gateway.Send(sendCtx, customer.Phone, messageFor(rule, customer))
	cancel()

	fields := logrus.Fields{
		"rule_id":     rule.ID,
		"customer_id": customer.ID,
		"source":      source,
	}

	if err != nil {
		var gwErr *GatewayError
		if errors.As(err, &gwErr) && gwErr.Permanent() {
			return d.handlePermanentRejection(ctx, customer, rule, source, attemptID, gwErr, now, fields)
		}
		// Transient or ambiguous: the message may be in flight, so the
		// reservation stands and the attempt is tracked as pending. The
		// delivery callback or the expiry sweep settles it.
		d.log.WithFields(fields).WithError(err).Warn("gateway send ambiguous, recording pending")
		sid = ""
	}

	rec := DispatchRecord{
		Customer:     customer,
		Rule:         rule,
		AttemptID:    attemptID,
		Source:       source,
		MessageSID:   sid,
		Now:          now,
		TrackingDays: d.settings.TrackingDaysFor(rule.TrackingDays),
	}
	if _, err := d.recorder.RecordDispatch(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateAttempt) {
			// Another tick already holds an open attempt for this pair;
			// that row is authoritative.
			d.log.WithFields(fields).Warn("duplicate open attempt, keeping existing row")
			return nil
		}
		d.log.WithFields(fields).WithError(err).Error("dispatch sent but recording failed")
		return fmt.Errorf("record dispatch: %w", err)
	}

	d.log.WithFields(fields).Info("contact dispatched")
	return nil
}

func (d *Dispatcher) handlePermanentRejection(
	ctx context.Context,
	customer *models.Customer,
	rule *models.AutomationRule,
	source models.PrioritySource,
	attemptID *uuid.UUID,
	gwErr *GatewayError,
	now time.Time,
	fields logrus.Fields,
) error {
	// Permanent failures never count against the rule's ceilings.
	if err := d.rules.ReleaseSend(ctx, rule.ID, now); err != nil {
		d.log.WithFields(fields).WithError(err).Error("failed to release send reservation")
	}

	reason := ClearInvalidNumber
	if gwErr.Kind == GatewayOptedOut {
		reason = ClearOptedOut
	}

	if attemptID != nil {
		if err := d.attempts.Clear(ctx, *attemptID, reason); err != nil && !errors.Is(err, ErrAttemptNotOpen) {
			return err
		}
	} else {
		audit := &models.ContactAttempt{
			SalonID:        rule.SalonID,
			CustomerID:     customer.ID,
			RuleID:         rule.ID,
			PrioritySource: source,
		}
		if err := d.attempts.CreateCleared(ctx, audit, reason); err != nil {
			return err
		}
	}

	if gwErr.Kind == GatewayOptedOut {
		if err := d.customers.Blacklist(ctx, customer.ID, ClearOptedOut); err != nil {
			return err
		}
	}

	d.log.WithFields(fields).WithField("reason", reason).Info("dispatch permanently rejected")
	return nil
}

// messageFor renders the outreach text. Template authoring lives outside
// the core; the rule only carries coupon metadata.
func messageFor(rule *models.AutomationRule, customer *models.Customer) string {
	if rule.CouponCode != "" {
		return fmt.Sprintf("Hi %s! We miss you. Use code %s for %.0f%% off your next visit.",
			customer.Name, rule.CouponCode, rule.CouponValue)
	}
	return fmt.Sprintf("Hi %s! We miss you and would love to see you again.", customer.Name)
}
