package config

import (
	"os"
	"strconv"
	"time"
)

// Cooldown bypass scope for flagged manual inclusions. The global spacing
// cooldown is enforced in every mode.
const (
	BypassScopeRule = "rule" // flagged inclusions skip the rule-specific cooldown
	BypassScopeNone = "none" // bypass flag is ignored
)

// AutomationSettings carries the knobs of the outreach scheduler. Loaded
// once at startup; a snapshot is passed by handle into each tick.
type AutomationSettings struct {
	TickInterval       time.Duration // scheduler cadence
	TickBudget         time.Duration // wall-clock budget per tick
	WorkerCount        int           // concurrent rule evaluations
	QueueBatchSize     int           // manual inclusions processed per tick
	TrackingWindowDays int           // default outcome window
	GlobalSpacingDays  int           // minimum spacing between any two contacts
	GatewayTimeout     time.Duration // per-send timeout
	BypassScope        string
}

func LoadAutomationSettings() AutomationSettings {
	return AutomationSettings{
		TickInterval:       envDuration("AUTOMATION_TICK_INTERVAL", 5*time.Minute),
		TickBudget:         envDuration("AUTOMATION_TICK_BUDGET", 4*time.Minute),
		WorkerCount:        envInt("AUTOMATION_WORKERS", 4),
		QueueBatchSize:     envInt("AUTOMATION_QUEUE_BATCH", 50),
		TrackingWindowDays: envInt("TRACKING_WINDOW_DAYS", 7),
		GlobalSpacingDays:  envInt("GLOBAL_SPACING_DAYS", 3),
		GatewayTimeout:     envDuration("GATEWAY_TIMEOUT", 10*time.Second),
		BypassScope:        envBypassScope("COOLDOWN_BYPASS_SCOPE", BypassScopeRule),
	}
}

// TrackingDaysFor resolves the outcome window for a rule, honoring the
// per-rule override when present.
func (s AutomationSettings) TrackingDaysFor(override *int) int {
	if override != nil && *override > 0 {
		return *override
	}
	return s.TrackingWindowDays
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func envBypassScope(key, def string) string {
	switch os.Getenv(key) {
	case BypassScopeRule:
		return BypassScopeRule
	case BypassScopeNone:
		return BypassScopeNone
	}
	return def
}
