// services/rule_engine.go
package services

import (
	"context"
	"sort"
	"time"

	"salonreach-backend/config"
	"salonreach-backend/models"
	"salonreach-backend/utils"
)

// Gate reasons: why a rule did not fire this tick. Checked before any
// customer is evaluated, so an off-window rule costs nothing.
const (
	GateExpired       = "rule_expired"
	GateLifetimeQuota = "lifetime_quota_reached"
	GateOutsideWindow = "outside_send_window"
	GateOffDay        = "off_day"
	GateDailyQuota    = "daily_quota_reached"
)

// Candidate pairs an eligible customer with the cooldown history used to
// order the batch.
type Candidate struct {
	Customer models.Customer
	History  CooldownHistory
}

// RuleEngine resolves, filters and orders the dispatch batch for one rule
// per tick. It holds read-only collaborators and is safe for concurrent use.
type RuleEngine struct {
	feed      CustomerFeed
	weather   WeatherFeed
	cooldowns CooldownStore
	settings  config.AutomationSettings
}

func NewRuleEngine(feed CustomerFeed, weather WeatherFeed, cooldowns CooldownStore, settings config.AutomationSettings) *RuleEngine {
	return &RuleEngine{feed: feed, weather: weather, cooldowns: cooldowns, settings: settings}
}

// Gate decides whether the rule may fire at now. Returns ok=false with the
// reason when any rule-level constraint blocks the whole tick.
func (e *RuleEngine) Gate(rule *models.AutomationRule, now time.Time) (bool, string) {
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return false, GateExpired
	}
	if rule.LimitedTotal() && rule.TotalSendsCount >= rule.MaxTotalSends {
		return false, GateLifetimeQuota
	}
	minutes := utils.MinutesOfDay(now)
	if minutes < rule.SendWindowStart || minutes >= rule.SendWindowEnd {
		return false, GateOutsideWindow
	}
	if !utils.WeekdaySetHas(rule.SendDays, now.Weekday()) {
		return false, GateOffDay
	}
	if rule.LimitedDaily() && rule.DailySentOn(now) >= rule.MaxDailySends {
		return false, GateDailyQuota
	}
	return true, ""
}

// CandidatesForTick resolves the trigger's candidate set, filters it through
// the eligibility evaluator and returns the ordered batch capped by the
// rule's remaining daily and lifetime quota, plus the skip-reason histogram.
func (e *RuleEngine) CandidatesForTick(ctx context.Context, rule *models.AutomationRule, now time.Time) ([]Candidate, map[string]int, error) {
	skips := make(map[string]int)

	trigger, err := triggerFor(TriggerKind(rule.TriggerKind), e.feed, e.weather)
	if err != nil {
		return nil, skips, err
	}
	pool, err := trigger.candidates(ctx, rule, now)
	if err != nil {
		return nil, skips, err
	}

	var batch []Candidate
	for i := range pool {
		customer := pool[i]
		history, err := e.cooldowns.HistoryFor(ctx, rule, customer.ID)
		if err != nil {
			return nil, skips, err
		}
		result := EvaluateEligibility(&customer, rule, now, history, e.settings.GlobalSpacingDays)
		if !result.Eligible {
			skips[result.Reason]++
			continue
		}
		batch = append(batch, Candidate{Customer: customer, History: history})
	}

	orderCandidates(batch)

	if limit := remainingQuota(rule, now); limit >= 0 && len(batch) > limit {
		batch = batch[:limit]
	}
	return batch, skips, nil
}

// orderCandidates sorts by descending days since last contact (never
// contacted first), then ascending customer id so ties break the same way
// on every run.
func orderCandidates(batch []Candidate) {
	sort.Slice(batch, func(i, j int) bool {
		a, b := batch[i].History.LastAnyContact, batch[j].History.LastAnyContact
		switch {
		case a == nil && b != nil:
			return true
		case a != nil && b == nil:
			return false
		case a != nil && b != nil && !a.Equal(*b):
			return a.Before(*b)
		}
		return batch[i].Customer.ID.String() < batch[j].Customer.ID.String()
	})
}

// remainingQuota returns how many more sends the rule may make today, or -1
// when unlimited.
func remainingQuota(rule *models.AutomationRule, now time.Time) int {
	remaining := -1
	if rule.LimitedDaily() {
		remaining = rule.MaxDailySends - rule.DailySentOn(now)
		if remaining < 0 {
			remaining = 0
		}
	}
	if rule.LimitedTotal() {
		lifetime := rule.MaxTotalSends - rule.TotalSendsCount
		if lifetime < 0 {
			lifetime = 0
		}
		if remaining < 0 || lifetime < remaining {
			remaining = lifetime
		}
	}
	return remaining
}

// ValidateRule rejects inconsistent rule definitions at admin-write time.
func ValidateRule(rule *models.AutomationRule) error {
	if !KnownTriggerKind(rule.TriggerKind) {
		return &ConfigurationError{Field: "triggerKind", Reason: "is not a supported trigger"}
	}
	if rule.TriggerParam < 0 {
		return &ConfigurationError{Field: "triggerParam", Reason: "must not be negative"}
	}
	if rule.CooldownDays < 0 {
		return &ConfigurationError{Field: "cooldownDays", Reason: "must not be negative"}
	}
	if rule.MaxTotalSends < 0 || rule.MaxDailySends < 0 {
		return &ConfigurationError{Field: "sendLimits", Reason: "must not be negative"}
	}
	if rule.SendWindowStart < 0 || rule.SendWindowEnd > 24*60 || rule.SendWindowStart >= rule.SendWindowEnd {
		return &ConfigurationError{Field: "sendWindow", Reason: "start must precede end within one day"}
	}
	if rule.SendDays == 0 {
		return &ConfigurationError{Field: "sendDays", Reason: "must include at least one weekday"}
	}
	if rule.ExcludeRecentDays < 0 {
		return &ConfigurationError{Field: "excludeRecentDays", Reason: "must not be negative"}
	}
	if rule.WalletBalanceMax != nil && *rule.WalletBalanceMax < 0 {
		return &ConfigurationError{Field: "walletBalanceMax", Reason: "must not be negative"}
	}
	if rule.TrackingDays != nil && *rule.TrackingDays <= 0 {
		return &ConfigurationError{Field: "trackingDays", Reason: "must be positive"}
	}
	return nil
}
