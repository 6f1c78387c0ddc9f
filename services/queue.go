// services/queue.go
package services

import (
	"context"
	"errors"
	"time"

	"salonreach-backend/config"
	"salonreach-backend/models"

	"github.com/sirupsen/logrus"
)

// QueueProcessor drains manually queued inclusion requests, oldest first,
// under the same eligibility guarantees as automatic sends. Ineligible
// entries are cleared with a machine-readable reason and never retried.
type QueueProcessor struct {
	attempts   AttemptStore
	rules      RuleStore
	feed       CustomerFeed
	cooldowns  CooldownStore
	dispatcher *Dispatcher
	settings   config.AutomationSettings
	log        *logrus.Logger
}

func NewQueueProcessor(
	attempts AttemptStore,
	rules RuleStore,
	feed CustomerFeed,
	cooldowns CooldownStore,
	dispatcher *Dispatcher,
	settings config.AutomationSettings,
	log *logrus.Logger,
) *QueueProcessor {
	return &QueueProcessor{
		attempts:   attempts,
		rules:      rules,
		feed:       feed,
		cooldowns:  cooldowns,
		dispatcher: dispatcher,
		settings:   settings,
		log:        log,
	}
}

// Process handles one bounded batch. A failure on one entry never blocks
// the rest of the batch.
func (p *QueueProcessor) Process(ctx context.Context, now time.Time) error {
	entries, err := p.attempts.OldestQueued(ctx, p.settings.QueueBatchSize)
	if err != nil {
		return err
	}

	for i := range entries {
		entry := entries[i]
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := p.processEntry(ctx, &entry, now); err != nil {
			p.log.WithFields(logrus.Fields{
				"attempt_id":  entry.ID,
				"rule_id":     entry.RuleID,
				"customer_id": entry.CustomerID,
			}).WithError(err).Error("manual inclusion processing failed")
		}
	}
	return nil
}

func (p *QueueProcessor) processEntry(ctx context.Context, entry *models.ContactAttempt, now time.Time) error {
	rule, err := p.rules.FindByID(ctx, entry.RuleID)
	if err != nil {
		return err
	}
	if rule == nil || !rule.Enabled {
		return p.attempts.Clear(ctx, entry.ID, ClearRuleDisabled)
	}

	customer, err := p.feed.FindByID(ctx, entry.CustomerID)
	if err != nil {
		return err
	}

	history, err := p.cooldowns.HistoryFor(ctx, rule, customer.ID)
	if err != nil {
		return err
	}
	// A flagged bypass blanks the rule-specific history only; the global
	// spacing check still sees every past contact.
	if entry.BypassRuleCooldown && p.settings.BypassScope == config.BypassScopeRule {
		history.LastRuleContact = nil
	}

	result := EvaluateEligibility(customer, rule, now, history, p.settings.GlobalSpacingDays)
	if !result.Eligible {
		p.log.WithFields(logrus.Fields{
			"attempt_id":  entry.ID,
			"customer_id": customer.ID,
			"reason":      result.Reason,
		}).Info("manual inclusion cleared")
		return p.attempts.Clear(ctx, entry.ID, result.Reason)
	}

	err = p.dispatcher.Dispatch(ctx, customer, rule, models.SourceManualInclusion, &entry.ID, now)
	if errors.Is(err, ErrSendQuotaExceeded) {
		// Quota is not ineligibility: the entry stays queued for a later tick.
		p.log.WithField("rule_id", rule.ID).Debug("manual inclusion deferred, quota reached")
		return nil
	}
	return err
}
