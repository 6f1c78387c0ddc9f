package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"salonreach-backend/models"
)

type dispatchFixture struct {
	gateway   *fakeGateway
	rules     *fakeRuleStore
	attempts  *fakeAttemptStore
	cooldowns *fakeCooldownStore
	customers *fakeCustomerStore
	recorder  *fakeRecorder
	d         *Dispatcher
}

func newDispatchFixture(rule *models.AutomationRule) *dispatchFixture {
	f := &dispatchFixture{
		gateway:   &fakeGateway{sid: "SM123"},
		rules:     newFakeRuleStore(rule),
		attempts:  newFakeAttemptStore(),
		cooldowns: &fakeCooldownStore{},
		customers: newFakeCustomerStore(),
	}
	f.recorder = newFakeRecorder(f.attempts, f.cooldowns)
	f.d = NewDispatcher(f.gateway, f.rules, f.attempts, f.recorder, f.customers, testSettings(), newTestLogger())
	return f
}

func (f *dispatchFixture) onlyAttempt(t *testing.T) *models.ContactAttempt {
	t.Helper()
	f.attempts.mu.Lock()
	defer f.attempts.mu.Unlock()
	if len(f.attempts.attempts) != 1 {
		t.Fatalf("attempt count = %d, want 1", len(f.attempts.attempts))
	}
	for _, a := range f.attempts.attempts {
		copied := *a
		return &copied
	}
	return nil
}

func TestDispatchSuccess(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	rule := testRule()
	rule.CouponCode = "COMEBACK20"
	rule.CouponValue = 20
	f := newDispatchFixture(rule)
	customer := testCustomer()
	f.customers.add(customer, false)

	err := f.d.Dispatch(context.Background(), customer, rule, models.SourceAutomation, nil, now)
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	a := f.onlyAttempt(t)
	if a.Status != models.AttemptPending {
		t.Errorf("status = %q, want pending", a.Status)
	}
	if a.ExpiresAt == nil || !a.ExpiresAt.Equal(now.AddDate(0, 0, 7)) {
		t.Errorf("ExpiresAt = %v, want now + default tracking window", a.ExpiresAt)
	}
	if rule.TotalSendsCount != 1 || rule.DailySendsCount != 1 {
		t.Errorf("counters = %d/%d, want 1/1", rule.TotalSendsCount, rule.DailySendsCount)
	}
	if f.gateway.lastPhone != customer.Phone {
		t.Errorf("sent to %q, want %q", f.gateway.lastPhone, customer.Phone)
	}

	// The cooldown ledger gained an entry for the rule's kind.
	h, _ := f.cooldowns.HistoryFor(context.Background(), rule, customer.ID)
	if h.LastRuleContact == nil || !h.LastRuleContact.Equal(now) {
		t.Errorf("LastRuleContact = %v, want %v", h.LastRuleContact, now)
	}

	link, _ := f.attempts.FindLinkBySID(context.Background(), "SM123")
	if link == nil || link.AttemptID != a.ID {
		t.Errorf("campaign link missing or pointing at wrong attempt: %+v", link)
	}
}

func TestDispatchQuotaBlocksBeforeGatewayCall(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	rule := testRule()
	rule.MaxTotalSends = 1
	rule.TotalSendsCount = 1
	f := newDispatchFixture(rule)
	customer := testCustomer()
	f.customers.add(customer, false)

	err := f.d.Dispatch(context.Background(), customer, rule, models.SourceAutomation, nil, now)
	if !errors.Is(err, ErrSendQuotaExceeded) {
		t.Fatalf("err = %v, want ErrSendQuotaExceeded", err)
	}
	if f.gateway.callCount() != 0 {
		t.Error("gateway was called despite exhausted quota")
	}
}

func TestDispatchPermanentRejectionReleasesQuota(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	rule := testRule()
	f := newDispatchFixture(rule)
	f.gateway.err = &GatewayError{Kind: GatewayInvalidNumber, Code: 21211}
	customer := testCustomer()
	f.customers.add(customer, false)

	if err := f.d.Dispatch(context.Background(), customer, rule, models.SourceAutomation, nil, now); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if rule.TotalSendsCount != 0 {
		t.Errorf("TotalSendsCount = %d, want 0 after release", rule.TotalSendsCount)
	}
	a := f.onlyAttempt(t)
	if a.Status != models.AttemptCleared || a.ClearReason != ClearInvalidNumber {
		t.Errorf("audit row = %q/%q, want cleared/invalid_number", a.Status, a.ClearReason)
	}
	f.customers.mu.Lock()
	blacklisted := f.customers.customers[customer.ID].Blacklisted
	f.customers.mu.Unlock()
	if blacklisted {
		t.Error("invalid number must not blacklist the customer")
	}
}

func TestDispatchOptOutBlacklistsCustomer(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	rule := testRule()
	f := newDispatchFixture(rule)
	f.gateway.err = &GatewayError{Kind: GatewayOptedOut, Code: 21610}
	customer := testCustomer()
	f.customers.add(customer, false)

	if err := f.d.Dispatch(context.Background(), customer, rule, models.SourceAutomation, nil, now); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	a := f.onlyAttempt(t)
	if a.ClearReason != ClearOptedOut {
		t.Errorf("clear reason = %q, want opted_out", a.ClearReason)
	}
	f.customers.mu.Lock()
	c := f.customers.customers[customer.ID]
	f.customers.mu.Unlock()
	if !c.Blacklisted || c.BlacklistReason != ClearOptedOut {
		t.Errorf("customer not blacklisted after opt-out: %+v", c)
	}
}

func TestDispatchTransientFailureKeepsReservation(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	rule := testRule()
	f := newDispatchFixture(rule)
	f.gateway.err = &GatewayError{Kind: GatewayTimeout}
	customer := testCustomer()
	f.customers.add(customer, false)

	if err := f.d.Dispatch(context.Background(), customer, rule, models.SourceAutomation, nil, now); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	// The message may be in flight: the attempt is pending with no SID and
	// the reservation stands.
	a := f.onlyAttempt(t)
	if a.Status != models.AttemptPending {
		t.Errorf("status = %q, want pending", a.Status)
	}
	if rule.TotalSendsCount != 1 {
		t.Errorf("TotalSendsCount = %d, want 1 (reservation kept)", rule.TotalSendsCount)
	}
	if link, _ := f.attempts.FindLinkBySID(context.Background(), ""); link == nil {
		t.Error("expected a campaign link with an empty SID")
	}
}

func TestDispatchDuplicateAttemptIsNotAnError(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	rule := testRule()
	f := newDispatchFixture(rule)
	customer := testCustomer()
	f.customers.add(customer, false)

	if err := f.d.Dispatch(context.Background(), customer, rule, models.SourceAutomation, nil, now); err != nil {
		t.Fatalf("first Dispatch: %v", err)
	}
	// Second dispatch for the same pair: the existing open attempt wins.
	if err := f.d.Dispatch(context.Background(), customer, rule, models.SourceAutomation, nil, now); err != nil {
		t.Fatalf("second Dispatch: %v", err)
	}

	f.attempts.mu.Lock()
	count := len(f.attempts.attempts)
	f.attempts.mu.Unlock()
	if count != 1 {
		t.Errorf("attempt count = %d, want 1", count)
	}
}

func TestDispatchPromotesQueuedManualEntry(t *testing.T) {
	now := time.Date(2025, 6, 10, 11, 0, 0, 0, time.UTC)
	rule := testRule()
	f := newDispatchFixture(rule)
	customer := testCustomer()
	f.customers.add(customer, false)

	queued := &models.ContactAttempt{
		SalonID:        rule.SalonID,
		CustomerID:     customer.ID,
		RuleID:         rule.ID,
		PrioritySource: models.SourceManualInclusion,
	}
	if err := f.attempts.CreateQueued(context.Background(), queued); err != nil {
		t.Fatalf("CreateQueued: %v", err)
	}

	if err := f.d.Dispatch(context.Background(), customer, rule, models.SourceManualInclusion, &queued.ID, now); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	a, _ := f.attempts.FindByID(context.Background(), queued.ID)
	if a.Status != models.AttemptPending {
		t.Errorf("status = %q, want pending (promoted in place)", a.Status)
	}
	if a.DispatchedAt == nil || !a.DispatchedAt.Equal(now) {
		t.Errorf("DispatchedAt = %v, want %v", a.DispatchedAt, now)
	}
}

func TestMessageForRendersCoupon(t *testing.T) {
	customer := testCustomer()
	rule := testRule()

	if got := messageFor(rule, customer); got == "" {
		t.Fatal("empty message")
	}

	rule.CouponCode = "SAVE15"
	rule.CouponValue = 15
	got := messageFor(rule, customer)
	if !strings.Contains(got, "SAVE15") {
		t.Errorf("message %q does not mention the coupon code", got)
	}
}
