// Package scheduler runs the periodic sweeps: contract status updates,
// overdue marking, monthly building dues and expiry reminders.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mmynk/flatlease/internal/service"
)

// Sweep names.
const (
	SweepContracts = "contracts"
	SweepDues      = "dues"
	SweepMonthly   = "monthly"
	SweepNotify    = "notify"
)

// SweepFunc runs one sweep to completion.
type SweepFunc func(ctx context.Context) (service.SweepResult, error)

// Observer records sweep outcomes.
type Observer interface {
	ObserveSweep(sweep string, transitioned, failed int, elapsed time.Duration, err error)
}

// Job is a named sweep.
type Job struct {
	Name string
	Run  SweepFunc
}

// Jobs returns the standard sweeps backed by svc.
func Jobs(svc *service.Services) []Job {
	return []Job{
		{Name: SweepContracts, Run: svc.Contracts.UpdateStatuses},
		{Name: SweepDues, Run: svc.Dues.UpdateOverdueStatuses},
		{Name: SweepMonthly, Run: svc.Dues.GenerateMonthly},
		{Name: SweepNotify, Run: svc.Contracts.NotifyExpiring},
	}
}

// Scheduler runs each job on its own ticker. A failing run is logged and
// retried at the next tick.
type Scheduler struct {
	interval time.Duration
	jobs     map[string]Job
	order    []string
	obs      Observer
	logger   *slog.Logger

	wg   sync.WaitGroup
	quit chan struct{}
	once sync.Once
}

// New creates a scheduler. obs may be nil.
func New(interval time.Duration, obs Observer, logger *slog.Logger, jobs ...Job) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		interval: interval,
		jobs:     make(map[string]Job, len(jobs)),
		obs:      obs,
		logger:   logger,
		quit:     make(chan struct{}),
	}
	for _, j := range jobs {
		s.jobs[j.Name] = j
		s.order = append(s.order, j.Name)
	}
	return s
}

// Names lists the registered jobs in registration order.
func (s *Scheduler) Names() []string {
	return append([]string(nil), s.order...)
}

// Run executes one job immediately.
func (s *Scheduler) Run(ctx context.Context, name string) (service.SweepResult, error) {
	job, ok := s.jobs[name]
	if !ok {
		return service.SweepResult{}, fmt.Errorf("unknown sweep %q", name)
	}
	return s.run(ctx, job)
}

func (s *Scheduler) run(ctx context.Context, job Job) (service.SweepResult, error) {
	start := time.Now()
	res, err := job.Run(ctx)
	elapsed := time.Since(start)

	if s.obs != nil {
		s.obs.ObserveSweep(job.Name, res.Transitioned, res.Failed, elapsed, err)
	}
	if err != nil {
		s.logger.Error("Sweep failed", "sweep", job.Name, "error", err, "duration_ms", elapsed.Milliseconds())
		return res, err
	}
	s.logger.Info("Sweep completed",
		"sweep", job.Name,
		"examined", res.Examined,
		"transitioned", res.Transitioned,
		"failed", res.Failed,
		"duration_ms", elapsed.Milliseconds(),
	)
	return res, nil
}

// Start runs every job once and then on each tick until ctx is done or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) {
	for _, name := range s.order {
		job := s.jobs[name]
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.loop(ctx, job)
		}()
	}
	s.logger.Info("Scheduler started", "jobs", s.order, "interval", s.interval)
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	_, _ = s.run(ctx, job)
	for {
		select {
		case <-ticker.C:
			_, _ = s.run(ctx, job)
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		}
	}
}

// Stop ends all loops and waits for in-flight runs.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.quit) })
	s.wg.Wait()
}
