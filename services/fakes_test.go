package services

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"salonreach-backend/config"
	"salonreach-backend/models"
	"salonreach-backend/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// In-memory fakes for the store interfaces. Each one is mutex-guarded so the
// scheduler tests can exercise the worker pool without a race.

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testSettings() config.AutomationSettings {
	return config.AutomationSettings{
		TickInterval:       time.Minute,
		TickBudget:         time.Minute,
		WorkerCount:        2,
		QueueBatchSize:     10,
		TrackingWindowDays: 7,
		GlobalSpacingDays:  3,
		GatewayTimeout:     time.Second,
		BypassScope:        config.BypassScopeRule,
	}
}

// --- customers ---

type fakeCustomerStore struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*models.Customer
	pool      []uuid.UUID // candidate set returned by every trigger query
}

func newFakeCustomerStore() *fakeCustomerStore {
	return &fakeCustomerStore{customers: make(map[uuid.UUID]*models.Customer)}
}

func (s *fakeCustomerStore) add(c *models.Customer, inPool bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[c.ID] = c
	if inPool {
		s.pool = append(s.pool, c.ID)
	}
}

func (s *fakeCustomerStore) poolCustomers() []models.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Customer, 0, len(s.pool))
	for _, id := range s.pool {
		out = append(out, *s.customers[id])
	}
	return out
}

func (s *fakeCustomerStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *s.customers[id]
	return &c, nil
}

func (s *fakeCustomerStore) InactiveSince(ctx context.Context, salonID uuid.UUID, minDays int, riskClass string, now time.Time) ([]models.Customer, error) {
	return s.poolCustomers(), nil
}

func (s *fakeCustomerStore) SingleVisitAged(ctx context.Context, salonID uuid.UUID, minDays int, now time.Time) ([]models.Customer, error) {
	return s.poolCustomers(), nil
}

func (s *fakeCustomerStore) WalletAbove(ctx context.Context, salonID uuid.UUID, min float64) ([]models.Customer, error) {
	return s.poolCustomers(), nil
}

func (s *fakeCustomerStore) AnniversaryWithin(ctx context.Context, salonID uuid.UUID, days int, now time.Time) ([]models.Customer, error) {
	return s.poolCustomers(), nil
}

func (s *fakeCustomerStore) Blacklist(ctx context.Context, customerID uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.customers[customerID]
	now := time.Now()
	c.Blacklisted = true
	c.BlacklistReason = reason
	c.BlacklistedAt = &now
	return nil
}

// --- weather ---

type fakeWeather struct {
	bad bool
	err error
}

func (w *fakeWeather) IsBadWeatherDay(ctx context.Context, day time.Time) (bool, error) {
	return w.bad, w.err
}

// --- rules ---

type ruleRun struct {
	at     time.Time
	status string
	errMsg string
	skips  map[string]int
}

type fakeRuleStore struct {
	mu       sync.Mutex
	rules    map[uuid.UUID]*models.AutomationRule
	reserved int
	released int
	runs     []ruleRun
}

func newFakeRuleStore(rules ...*models.AutomationRule) *fakeRuleStore {
	s := &fakeRuleStore{rules: make(map[uuid.UUID]*models.AutomationRule)}
	for _, r := range rules {
		s.rules[r.ID] = r
	}
	return s
}

func (s *fakeRuleStore) Enabled(ctx context.Context) ([]models.AutomationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AutomationRule
	for _, r := range s.rules {
		if r.Enabled {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (s *fakeRuleStore) FindByID(ctx context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rules[id]
	if !ok {
		return nil, nil
	}
	copied := *r
	return &copied, nil
}

func (s *fakeRuleStore) ReserveSend(ctx context.Context, ruleID uuid.UUID, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rules[ruleID]
	if r.DailyCountDate == nil || !utils.SameDay(*r.DailyCountDate, day) {
		r.DailySendsCount = 0
		d := utils.BeginningOfDay(day)
		r.DailyCountDate = &d
	}
	if r.LimitedTotal() && r.TotalSendsCount >= r.MaxTotalSends {
		return ErrSendQuotaExceeded
	}
	if r.LimitedDaily() && r.DailySendsCount >= r.MaxDailySends {
		return ErrSendQuotaExceeded
	}
	r.TotalSendsCount++
	r.DailySendsCount++
	s.reserved++
	return nil
}

func (s *fakeRuleStore) ReleaseSend(ctx context.Context, ruleID uuid.UUID, day time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rules[ruleID]
	if r.TotalSendsCount > 0 {
		r.TotalSendsCount--
	}
	if r.DailySendsCount > 0 {
		r.DailySendsCount--
	}
	s.released++
	return nil
}

func (s *fakeRuleStore) RecordRun(ctx context.Context, ruleID uuid.UUID, at time.Time, status, errMsg string, skips map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, ruleRun{at: at, status: status, errMsg: errMsg, skips: skips})
	return nil
}

// --- cooldown ledger ---

type cooldownEntry struct {
	kind     string
	customer uuid.UUID
	sentAt   time.Time
}

type fakeCooldownStore struct {
	mu      sync.Mutex
	entries []cooldownEntry
}

func (s *fakeCooldownStore) record(kind string, customer uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, cooldownEntry{kind: kind, customer: customer, sentAt: at})
}

func (s *fakeCooldownStore) HistoryFor(ctx context.Context, rule *models.AutomationRule, customerID uuid.UUID) (CooldownHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var h CooldownHistory
	for i := range s.entries {
		e := s.entries[i]
		if e.customer != customerID {
			continue
		}
		if h.LastAnyContact == nil || e.sentAt.After(*h.LastAnyContact) {
			t := e.sentAt
			h.LastAnyContact = &t
		}
		if e.kind == rule.TriggerKind && (h.LastRuleContact == nil || e.sentAt.After(*h.LastRuleContact)) {
			t := e.sentAt
			h.LastRuleContact = &t
		}
	}
	return h, nil
}

// --- attempts ---

type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts map[uuid.UUID]*models.ContactAttempt
	links    map[uuid.UUID]*models.CampaignLink
	seq      int
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		attempts: make(map[uuid.UUID]*models.ContactAttempt),
		links:    make(map[uuid.UUID]*models.CampaignLink),
	}
}

func (s *fakeAttemptStore) hasOpen(ruleID, customerID uuid.UUID) bool {
	for _, a := range s.attempts {
		if a.RuleID == ruleID && a.CustomerID == customerID && !a.Status.Terminal() {
			return true
		}
	}
	return false
}

func (s *fakeAttemptStore) insert(a *models.ContactAttempt) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.seq++
	a.CreatedAt = time.Unix(int64(s.seq), 0)
	s.attempts[a.ID] = a
}

func (s *fakeAttemptStore) FindByID(ctx context.Context, id uuid.UUID) (*models.ContactAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (s *fakeAttemptStore) CreateQueued(ctx context.Context, a *models.ContactAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasOpen(a.RuleID, a.CustomerID) {
		return ErrDuplicateAttempt
	}
	a.Status = models.AttemptQueued
	a.PrioritySource = models.SourceManualInclusion
	s.insert(a)
	return nil
}

func (s *fakeAttemptStore) CreateCleared(ctx context.Context, a *models.ContactAttempt, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Status = models.AttemptCleared
	a.ClearReason = reason
	s.insert(a)
	return nil
}

func (s *fakeAttemptStore) OldestQueued(ctx context.Context, limit int) ([]models.ContactAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ContactAttempt
	for _, a := range s.attempts {
		if a.Status == models.AttemptQueued {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeAttemptStore) transition(id uuid.UUID, next models.AttemptStatus) (*models.ContactAttempt, error) {
	a, ok := s.attempts[id]
	if !ok || !a.Status.CanTransitionTo(next) {
		return nil, ErrAttemptNotOpen
	}
	a.Status = next
	return a, nil
}

func (s *fakeAttemptStore) Clear(ctx context.Context, attemptID uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.transition(attemptID, models.AttemptCleared)
	if err != nil {
		return err
	}
	a.ClearReason = reason
	return nil
}

func (s *fakeAttemptStore) ClearQueued(ctx context.Context, attemptID uuid.UUID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[attemptID]
	if !ok || a.Status != models.AttemptQueued {
		return ErrAttemptNotOpen
	}
	a.Status = models.AttemptCleared
	a.ClearReason = reason
	return nil
}

func (s *fakeAttemptStore) OpenPending(ctx context.Context, customerID uuid.UUID) ([]models.ContactAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ContactAttempt
	for _, a := range s.attempts {
		if a.CustomerID == customerID && a.Status == models.AttemptPending {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeAttemptStore) MarkReturned(ctx context.Context, attemptID uuid.UUID, visitAt time.Time, daysToReturn int, revenue float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.transition(attemptID, models.AttemptReturned)
	if err != nil {
		return err
	}
	a.ReturnedAt = &visitAt
	a.DaysToReturn = &daysToReturn
	a.ReturnRevenue = &revenue
	return nil
}

func (s *fakeAttemptStore) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.attempts {
		if a.Status == models.AttemptPending && a.ExpiresAt != nil && !now.Before(*a.ExpiresAt) {
			a.Status = models.AttemptExpired
			n++
		}
	}
	return n, nil
}

func (s *fakeAttemptStore) FindLinkBySID(ctx context.Context, sid string) (*models.CampaignLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		if l.MessageSID == sid {
			copied := *l
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeAttemptStore) SetDeliveryStatus(ctx context.Context, linkID uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.links[linkID]; ok {
		l.DeliveryStatus = status
	}
	return nil
}

// --- dispatch recorder ---

type fakeRecorder struct {
	mu        sync.Mutex
	attempts  *fakeAttemptStore
	cooldowns *fakeCooldownStore
	records   []DispatchRecord
	failWith  error
}

func newFakeRecorder(attempts *fakeAttemptStore, cooldowns *fakeCooldownStore) *fakeRecorder {
	return &fakeRecorder{attempts: attempts, cooldowns: cooldowns}
}

func (r *fakeRecorder) RecordDispatch(ctx context.Context, rec DispatchRecord) (*models.ContactAttempt, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}

	r.attempts.mu.Lock()
	expires := rec.Now.AddDate(0, 0, rec.TrackingDays)
	dispatched := rec.Now
	var attempt *models.ContactAttempt
	if rec.AttemptID != nil {
		a, ok := r.attempts.attempts[*rec.AttemptID]
		if !ok || a.Status != models.AttemptQueued {
			r.attempts.mu.Unlock()
			return nil, ErrAttemptNotOpen
		}
		a.Status = models.AttemptPending
		a.DispatchedAt = &dispatched
		a.ExpiresAt = &expires
		attempt = a
	} else {
		if r.attempts.hasOpen(rec.Rule.ID, rec.Customer.ID) {
			r.attempts.mu.Unlock()
			return nil, ErrDuplicateAttempt
		}
		attempt = &models.ContactAttempt{
			SalonID:        rec.Rule.SalonID,
			CustomerID:     rec.Customer.ID,
			RuleID:         rec.Rule.ID,
			Status:         models.AttemptPending,
			PrioritySource: rec.Source,
			DispatchedAt:   &dispatched,
			ExpiresAt:      &expires,
		}
		r.attempts.insert(attempt)
	}
	link := &models.CampaignLink{
		ID:             uuid.New(),
		AttemptID:      attempt.ID,
		MessageSID:     rec.MessageSID,
		DeliveryStatus: models.DeliveryAccepted,
	}
	r.attempts.links[link.ID] = link
	r.attempts.mu.Unlock()

	r.cooldowns.record(rec.Rule.TriggerKind, rec.Customer.ID, rec.Now)

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()

	copied := *attempt
	return &copied, nil
}

// --- gateway ---

type fakeGateway struct {
	mu        sync.Mutex
	sid       string
	err       error
	calls     int
	lastPhone string
	lastBody  string
}

func (g *fakeGateway) Send(ctx context.Context, phone, body string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.lastPhone = phone
	g.lastBody = body
	if g.err != nil {
		return "", g.err
	}
	return g.sid, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}
