// Package scheduler fires the periodic evaluation tick and records a
// heartbeat after every pass.
package scheduler

import (
	"context"
	"time"

	"github.com/flowledger/flowledger/internal/engine"
	"github.com/flowledger/flowledger/internal/health"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DefaultSpec runs the tick at the top of every hour.
const DefaultSpec = "0 * * * *"

// Scheduler owns the cron loop driving schedule-triggered rules.
type Scheduler struct {
	db     *gorm.DB
	runner *engine.Runner
	spec   string
	cron   *cron.Cron
}

// New builds a stopped scheduler. An empty spec uses DefaultSpec.
func New(db *gorm.DB, runner *engine.Runner, spec string) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Scheduler{db: db, runner: runner, spec: spec}
}

// Start registers the tick and begins the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron = cron.New()
	if _, errAdd := s.cron.AddFunc(s.spec, func() { s.Tick(ctx) }); errAdd != nil {
		return errAdd
	}
	s.cron.Start()
	log.WithField("spec", s.spec).Info("Scheduler started")
	return nil
}

// Stop halts the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	log.Info("Scheduler stopped")
}

// Tick evaluates all active schedule-triggered rules once. Event keys
// are bucketed by hour, so an overlapping or re-fired tick is absorbed
// by the run ledger rather than double-executing.
func (s *Scheduler) Tick(ctx context.Context) {
	now := time.Now()
	event := engine.NewScheduleEvent(now)
	runs, errEval := s.runner.EvaluateForEvent(ctx, event, false)

	payload := map[string]any{
		"last_tick_at": now.UTC().Format(time.RFC3339),
		"event_key":    event.Key,
		"run_count":    len(runs),
		"status":       "ok",
	}
	if errEval != nil {
		log.WithError(errEval).Error("Scheduler tick failed")
		payload["status"] = "error"
		payload["error"] = errEval.Error()
	} else {
		log.WithFields(log.Fields{"event_key": event.Key, "runs": len(runs)}).Info("Scheduler tick complete")
	}
	if errHealth := health.Upsert(ctx, s.db, health.ComponentScheduler, payload); errHealth != nil {
		log.WithError(errHealth).Warn("Failed to record scheduler heartbeat")
	}
}
