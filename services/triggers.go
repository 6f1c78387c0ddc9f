// services/triggers.go
package services

import (
	"context"
	"fmt"
	"time"

	"salonreach-backend/models"
)

// TriggerKind is the closed set of automation triggers. Adding a kind means
// adding a variant here and a case in triggerFor; the engine refuses unknown
// kinds at validation time, so no string branching survives to a tick.
type TriggerKind string

const (
	TriggerDaysSinceVisit TriggerKind = "days_since_visit"
	TriggerFirstPurchase  TriggerKind = "first_purchase"
	TriggerWalletBalance  TriggerKind = "wallet_balance"
	TriggerAnniversary    TriggerKind = "anniversary"
	TriggerWeather        TriggerKind = "weather"
)

// KnownTriggerKind reports whether kind names a supported trigger.
func KnownTriggerKind(kind string) bool {
	switch TriggerKind(kind) {
	case TriggerDaysSinceVisit, TriggerFirstPurchase, TriggerWalletBalance,
		TriggerAnniversary, TriggerWeather:
		return true
	}
	return false
}

// candidateQuery resolves the raw candidate set for one trigger kind.
// Candidates are a superset; the eligibility evaluator filters them.
type candidateQuery interface {
	candidates(ctx context.Context, rule *models.AutomationRule, now time.Time) ([]models.Customer, error)
}

type daysSinceVisitTrigger struct{ feed CustomerFeed }

func (t daysSinceVisitTrigger) candidates(ctx context.Context, rule *models.AutomationRule, now time.Time) ([]models.Customer, error) {
	return t.feed.InactiveSince(ctx, rule.SalonID, int(rule.TriggerParam), rule.RiskClass, now)
}

type firstPurchaseTrigger struct{ feed CustomerFeed }

func (t firstPurchaseTrigger) candidates(ctx context.Context, rule *models.AutomationRule, now time.Time) ([]models.Customer, error) {
	return t.feed.SingleVisitAged(ctx, rule.SalonID, int(rule.TriggerParam), now)
}

type walletBalanceTrigger struct{ feed CustomerFeed }

func (t walletBalanceTrigger) candidates(ctx context.Context, rule *models.AutomationRule, now time.Time) ([]models.Customer, error) {
	return t.feed.WalletAbove(ctx, rule.SalonID, rule.TriggerParam)
}

type anniversaryTrigger struct{ feed CustomerFeed }

func (t anniversaryTrigger) candidates(ctx context.Context, rule *models.AutomationRule, now time.Time) ([]models.Customer, error) {
	return t.feed.AnniversaryWithin(ctx, rule.SalonID, int(rule.TriggerParam), now)
}

// weatherTrigger fills quiet bad-weather days with winback contacts for
// customers inactive at least TriggerParam days. Without a weather feed the
// trigger never fires.
type weatherTrigger struct {
	feed    CustomerFeed
	weather WeatherFeed
}

func (t weatherTrigger) candidates(ctx context.Context, rule *models.AutomationRule, now time.Time) ([]models.Customer, error) {
	if t.weather == nil {
		return nil, nil
	}
	bad, err := t.weather.IsBadWeatherDay(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("weather feed: %w", err)
	}
	if !bad {
		return nil, nil
	}
	return t.feed.InactiveSince(ctx, rule.SalonID, int(rule.TriggerParam), rule.RiskClass, now)
}

func triggerFor(kind TriggerKind, feed CustomerFeed, weather WeatherFeed) (candidateQuery, error) {
	switch kind {
	case TriggerDaysSinceVisit:
		return daysSinceVisitTrigger{feed: feed}, nil
	case TriggerFirstPurchase:
		return firstPurchaseTrigger{feed: feed}, nil
	case TriggerWalletBalance:
		return walletBalanceTrigger{feed: feed}, nil
	case TriggerAnniversary:
		return anniversaryTrigger{feed: feed}, nil
	case TriggerWeather:
		return weatherTrigger{feed: feed, weather: weather}, nil
	}
	return nil, &ConfigurationError{Field: "triggerKind", Reason: fmt.Sprintf("unknown kind %q", kind)}
}
