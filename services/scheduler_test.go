package services

import (
	"context"
	"testing"
	"time"

	"salonreach-backend/models"
)

func newSchedulerFixture(rule *models.AutomationRule, now time.Time) (*Scheduler, *dispatchFixture) {
	f := newDispatchFixture(rule)
	settings := testSettings()
	engine := NewRuleEngine(f.customers, nil, f.cooldowns, settings)
	queue := NewQueueProcessor(f.attempts, f.rules, f.customers, f.cooldowns, f.d, settings, newTestLogger())
	tracker := NewTracker(f.attempts, newTestLogger())
	s := NewScheduler(engine, queue, tracker, f.d, f.rules, settings, newTestLogger())
	s.nowFn = func() time.Time { return now }
	return s, f
}

func TestRunTickDispatchesEligibleCandidates(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	rule := testRule()
	s, f := newSchedulerFixture(rule, now)

	for i := 0; i < 3; i++ {
		f.customers.add(testCustomer(), true)
	}

	s.RunTick()

	if got := f.gateway.callCount(); got != 3 {
		t.Errorf("gateway calls = %d, want 3", got)
	}
	f.rules.mu.Lock()
	runs := len(f.rules.runs)
	var last ruleRun
	if runs > 0 {
		last = f.rules.runs[runs-1]
	}
	f.rules.mu.Unlock()
	if runs == 0 || last.status != models.RunStatusSuccess {
		t.Errorf("last run = %+v, want one success run", last)
	}
}

func TestRunTickSkipsWhenLeaseHeld(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	rule := testRule()
	s, f := newSchedulerFixture(rule, now)
	f.customers.add(testCustomer(), true)

	s.tickMu.Lock()
	s.RunTick()
	s.tickMu.Unlock()

	if got := f.gateway.callCount(); got != 0 {
		t.Errorf("gateway calls = %d, want 0 while the lease is held", got)
	}

	// With the lease free the same tick does its work.
	s.RunTick()
	if got := f.gateway.callCount(); got != 1 {
		t.Errorf("gateway calls = %d, want 1 after the lease is released", got)
	}
}

func TestLifetimeCeilingHoldsAcrossTicks(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	rule := testRule()
	rule.MaxTotalSends = 2
	s, f := newSchedulerFixture(rule, now)

	for i := 0; i < 5; i++ {
		f.customers.add(testCustomer(), true)
	}

	s.RunTick()
	if got := f.gateway.callCount(); got != 2 {
		t.Fatalf("gateway calls = %d, want 2 (lifetime ceiling)", got)
	}

	// Next tick: the rule is gated before any candidate work. New customers
	// keep the pool non-empty; global spacing does not apply to them.
	f.customers.add(testCustomer(), true)
	s.nowFn = func() time.Time { return now.AddDate(0, 0, 10) }
	s.RunTick()
	if got := f.gateway.callCount(); got != 2 {
		t.Errorf("gateway calls = %d, want still 2 after the ceiling", got)
	}
}

func TestRunTickGatedRuleRecordsNoRun(t *testing.T) {
	// 21:00: outside the 09:00-20:00 send window.
	now := time.Date(2025, 6, 10, 21, 0, 0, 0, time.UTC)
	rule := testRule()
	s, f := newSchedulerFixture(rule, now)
	f.customers.add(testCustomer(), true)

	s.RunTick()

	if got := f.gateway.callCount(); got != 0 {
		t.Errorf("gateway calls = %d, want 0 outside the send window", got)
	}
	f.rules.mu.Lock()
	runs := len(f.rules.runs)
	f.rules.mu.Unlock()
	if runs != 0 {
		t.Errorf("runs recorded = %d, want 0 for a gated rule", runs)
	}
}

func TestRunTickSweepsBeforeDispatching(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	rule := testRule()
	s, f := newSchedulerFixture(rule, now)

	stale := testCustomer()
	f.customers.add(stale, false)
	a := pendingAttempt(f.attempts, stale.ID, now.AddDate(0, 0, -10), 7)

	s.RunTick()

	got, _ := f.attempts.FindByID(context.Background(), a.ID)
	if got.Status != models.AttemptExpired {
		t.Errorf("stale attempt = %q, want expired by the tick sweep", got.Status)
	}
}
