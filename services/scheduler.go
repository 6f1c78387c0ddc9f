// services/scheduler.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"salonreach-backend/config"
	"salonreach-backend/models"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler is the periodic entry point: one bounded unit of work per tick.
// It holds an in-process lease so a slow tick is skipped rather than
// overlapped, sweeps expired attempts, drains the manual queue and fans
// rule evaluation out over a bounded worker pool.
type Scheduler struct {
	cronEngine *cron.Cron
	engine     *RuleEngine
	queue      *QueueProcessor
	tracker    *Tracker
	dispatcher *Dispatcher
	rules      RuleStore
	settings   config.AutomationSettings
	log        *logrus.Logger

	tickMu sync.Mutex // exclusive tick lease
	nowFn  func() time.Time
}

func NewScheduler(
	engine *RuleEngine,
	queue *QueueProcessor,
	tracker *Tracker,
	dispatcher *Dispatcher,
	rules RuleStore,
	settings config.AutomationSettings,
	log *logrus.Logger,
) *Scheduler {
	return &Scheduler{
		cronEngine: cron.New(),
		engine:     engine,
		queue:      queue,
		tracker:    tracker,
		dispatcher: dispatcher,
		rules:      rules,
		settings:   settings,
		log:        log,
		nowFn:      time.Now,
	}
}

func (s *Scheduler) Start() error {
	spec := fmt.Sprintf("@every %s", s.settings.TickInterval)
	if _, err := s.cronEngine.AddFunc(spec, s.RunTick); err != nil {
		return fmt.Errorf("schedule tick: %w", err)
	}
	s.cronEngine.Start()
	s.log.WithField("interval", s.settings.TickInterval).Info("automation scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.log.Info("automation scheduler stopped")
}

// RunTick performs one scheduling pass. If the previous tick still holds
// the lease the pass is skipped entirely.
func (s *Scheduler) RunTick() {
	if !s.tickMu.TryLock() {
		s.log.Warn("previous tick still running, skipping")
		return
	}
	defer s.tickMu.Unlock()

	now := s.nowFn()
	ctx, cancel := context.WithTimeout(context.Background(), s.settings.TickBudget)
	defer cancel()

	if _, err := s.tracker.SweepExpired(ctx, now); err != nil {
		s.log.WithError(err).Error("expiry sweep failed")
	}
	if err := s.queue.Process(ctx, now); err != nil {
		s.log.WithError(err).Error("manual queue processing failed")
	}

	rules, err := s.rules.Enabled(ctx)
	if err != nil {
		s.log.WithError(err).Error("failed to load enabled rules")
		return
	}

	// Independent rules are evaluated concurrently; write contention is
	// confined to the dispatcher and the per-rule counter updates.
	sem := make(chan struct{}, s.settings.WorkerCount)
	var wg sync.WaitGroup
	for i := range rules {
		rule := rules[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			s.processRule(ctx, &rule, now)
		}()
	}
	wg.Wait()
}

// processRule runs one rule through gate, candidate resolution and
// dispatch. Failures stay inside the rule: they are recorded on its
// last-run status and never abort the tick for other rules.
func (s *Scheduler) processRule(ctx context.Context, rule *models.AutomationRule, now time.Time) {
	fields := logrus.Fields{"rule_id": rule.ID, "rule": rule.Name}

	defer func() {
		if r := recover(); r != nil {
			s.log.WithFields(fields).Errorf("rule evaluation panicked: %v", r)
			s.recordRun(rule, now, models.RunStatusFailed, fmt.Sprintf("panic: %v", r), nil)
		}
	}()

	if ok, reason := s.engine.Gate(rule, now); !ok {
		s.log.WithFields(fields).WithField("gate", reason).Debug("rule gated, not firing")
		return
	}

	batch, skips, err := s.engine.CandidatesForTick(ctx, rule, now)
	if err != nil {
		s.log.WithFields(fields).WithError(err).Error("candidate resolution failed")
		s.recordRun(rule, now, models.RunStatusFailed, err.Error(), skips)
		return
	}

	dispatched, failed := 0, 0
	for i := range batch {
		// The tick budget stops new dispatches; in-flight ones complete
		// inside Dispatch's own gateway timeout.
		if ctx.Err() != nil {
			s.log.WithFields(fields).Warn("tick budget exhausted, stopping dispatches")
			break
		}
		candidate := batch[i]
		err := s.dispatcher.Dispatch(ctx, &candidate.Customer, rule, models.SourceAutomation, nil, now)
		switch {
		case err == nil:
			dispatched++
		case errors.Is(err, ErrSendQuotaExceeded):
			s.recordRun(rule, now, models.RunStatusSuccess, "", skips)
			return
		default:
			failed++
			s.log.WithFields(fields).WithField("customer_id", candidate.Customer.ID).
				WithError(err).Error("dispatch failed")
		}
	}

	status := models.RunStatusSuccess
	if failed > 0 {
		status = models.RunStatusPartial
	}
	s.log.WithFields(fields).WithFields(logrus.Fields{
		"dispatched": dispatched,
		"failed":     failed,
		"skipped":    len(skips),
	}).Info("rule tick completed")
	s.recordRun(rule, now, status, "", skips)
}

func (s *Scheduler) recordRun(rule *models.AutomationRule, now time.Time, status, errMsg string, skips map[string]int) {
	// Recording runs on a fresh context so a blown tick budget cannot lose
	// the run outcome.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.rules.RecordRun(ctx, rule.ID, now, status, errMsg, skips); err != nil {
		s.log.WithField("rule_id", rule.ID).WithError(err).Error("failed to record rule run")
	}
}
