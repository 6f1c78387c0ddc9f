// services/eligibility.go
package services

import (
	"time"

	"salonreach-backend/models"
	"salonreach-backend/utils"
)

// Skip reasons. These double as machine-readable clear reasons on manually
// queued attempts and as keys of the per-rule skip histogram.
const (
	ReasonBlacklisted    = "blacklisted"
	ReasonNoValidPhone   = "no_valid_phone"
	ReasonCooldownActive = "cooldown_active"
	ReasonGlobalSpacing  = "global_spacing_active"
	ReasonBelowMinSpend  = "below_min_spend"
	ReasonWalletAboveMax = "wallet_above_max"
	ReasonRecentVisit    = "recently_visited"
)

// EligibilityResult reports whether a customer may receive a rule's contact
// right now, and why not otherwise. RemainingDays is set for the two
// cooldown reasons.
type EligibilityResult struct {
	Eligible      bool
	Reason        string
	RemainingDays int
}

func eligible() EligibilityResult {
	return EligibilityResult{Eligible: true}
}

func ineligible(reason string) EligibilityResult {
	return EligibilityResult{Reason: reason}
}

// EvaluateEligibility decides whether customer may receive rule's contact at
// now. Pure: same inputs always yield the same result, no I/O, safe to call
// from any number of goroutines. The cooldown ledger is supplied as history.
func EvaluateEligibility(
	customer *models.Customer,
	rule *models.AutomationRule,
	now time.Time,
	history CooldownHistory,
	globalSpacingDays int,
) EligibilityResult {
	if customer.Blacklisted {
		return ineligible(ReasonBlacklisted)
	}
	if !utils.ValidatePhone(customer.Phone) {
		return ineligible(ReasonNoValidPhone)
	}

	if remaining := remainingCooldown(history.LastRuleContact, rule.CooldownDays, now); remaining > 0 {
		return EligibilityResult{Reason: ReasonCooldownActive, RemainingDays: remaining}
	}
	if remaining := remainingCooldown(history.LastAnyContact, globalSpacingDays, now); remaining > 0 {
		return EligibilityResult{Reason: ReasonGlobalSpacing, RemainingDays: remaining}
	}

	if rule.MinTotalSpent > 0 && customer.TotalSpent < rule.MinTotalSpent {
		return ineligible(ReasonBelowMinSpend)
	}
	if rule.WalletBalanceMax != nil && customer.WalletBalance > *rule.WalletBalanceMax {
		return ineligible(ReasonWalletAboveMax)
	}
	if rule.ExcludeRecentDays > 0 && customer.LastVisit != nil {
		if utils.DaysBetween(*customer.LastVisit, now) < rule.ExcludeRecentDays {
			return ineligible(ReasonRecentVisit)
		}
	}

	return eligible()
}

func remainingCooldown(last *time.Time, cooldownDays int, now time.Time) int {
	if last == nil || cooldownDays <= 0 {
		return 0
	}
	remaining := cooldownDays - utils.DaysBetween(*last, now)
	if remaining < 0 {
		return 0
	}
	return remaining
}
