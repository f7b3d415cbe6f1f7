package cron

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	robcron "github.com/robfig/cron/v3"
)

const defaultMaxRuns = 100

// Scheduler manages recurring drift sweeps using cron expressions. Each job
// keeps a bounded run history for inspection.
type Scheduler struct {
	mu      sync.RWMutex
	cron    *robcron.Cron
	jobs    map[string]*managedJob
	sweeper *Sweeper
	timeout time.Duration
	started bool
	maxRuns int
}

type managedJob struct {
	Job
	entryID robcron.EntryID
	runs    []JobRun
}

type SchedulerOption func(*Scheduler)

// WithSweepTimeout bounds how long one sweep may run. Zero disables the
// deadline.
func WithSweepTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d >= 0 {
			s.timeout = d
		}
	}
}

func NewScheduler(sweeper *Sweeper, opts ...SchedulerOption) (*Scheduler, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("cron: sweeper is required")
	}
	s := &Scheduler{
		cron:    robcron.New(),
		jobs:    make(map[string]*managedJob),
		sweeper: sweeper,
		maxRuns: defaultMaxRuns,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Add registers a new scheduled sweep. The name must be unique and the cron
// expression valid.
func (s *Scheduler) Add(name, cronExpr string, cfg SweepConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		return fmt.Errorf("job name is required")
	}
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %q already exists", name)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		_, _ = s.runAndRecord(name, "schedule", true)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	mj := &managedJob{
		Job: Job{
			Name:     name,
			CronExpr: cronExpr,
			Config:   cfg,
			Enabled:  true,
		},
		entryID: entryID,
	}
	if entry := s.cron.Entry(entryID); !entry.Next.IsZero() {
		mj.NextRun = entry.Next
	}

	s.jobs[name] = mj
	return nil
}

// Remove deletes a scheduled sweep by name.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mj, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("job %q not found", name)
	}
	s.cron.Remove(mj.entryID)
	delete(s.jobs, name)
	return nil
}

// List returns all registered sweeps sorted by name.
func (s *Scheduler) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.jobs))
	for _, mj := range s.jobs {
		j := mj.Job
		if entry := s.cron.Entry(mj.entryID); !entry.Next.IsZero() {
			j.NextRun = entry.Next
		}
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

// Get returns a single sweep by name.
func (s *Scheduler) Get(name string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mj, ok := s.jobs[name]
	if !ok {
		return Job{}, false
	}
	j := mj.Job
	if entry := s.cron.Entry(mj.entryID); !entry.Next.IsZero() {
		j.NextRun = entry.Next
	}
	return j, true
}

// SetEnabled enables or disables a sweep without removing it. Disabled
// sweeps skip their schedule but can still be triggered manually.
func (s *Scheduler) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mj, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("job %q not found", name)
	}
	mj.Enabled = enabled
	return nil
}

// Trigger executes a sweep immediately, regardless of its schedule or
// enabled state, and returns the run summary.
func (s *Scheduler) Trigger(name string) (string, error) {
	return s.runAndRecord(name, "manual", false)
}

// History returns the most recent runs of a sweep, newest first.
func (s *Scheduler) History(name string, limit int) ([]JobRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	mj, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("job %q not found", name)
	}
	if limit <= 0 || limit > len(mj.runs) {
		limit = len(mj.runs)
	}
	out := make([]JobRun, 0, limit)
	for i := len(mj.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, mj.runs[i])
	}
	return out, nil
}

func (s *Scheduler) runAndRecord(name, trigger string, skipIfDisabled bool) (string, error) {
	s.mu.RLock()
	mj, ok := s.jobs[name]
	if !ok {
		s.mu.RUnlock()
		return "", fmt.Errorf("job %q not found", name)
	}
	if skipIfDisabled && !mj.Enabled {
		s.mu.RUnlock()
		return "", nil
	}
	cfg := mj.Config
	timeout := s.timeout
	s.mu.RUnlock()

	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	output, err := s.sweeper.Sweep(ctx, cfg)
	finished := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	mj, ok = s.jobs[name]
	if !ok {
		return output, err
	}
	mj.LastRun = finished
	mj.RunCount++
	run := JobRun{
		At:         finished,
		DurationMS: finished.Sub(started).Milliseconds(),
		Trigger:    trigger,
	}
	if err != nil {
		mj.LastErr = err.Error()
		run.Status = "failed"
		run.Error = err.Error()
		log.Printf("[cron] sweep %q failed (%s): %v", name, trigger, err)
	} else {
		mj.LastErr = ""
		run.Status = "completed"
		run.Output = output
		log.Printf("[cron] sweep %q completed (%s): %s", name, trigger, output)
	}
	mj.runs = append(mj.runs, run)
	if s.maxRuns > 0 && len(mj.runs) > s.maxRuns {
		mj.runs = mj.runs[len(mj.runs)-s.maxRuns:]
	}
	if entry := s.cron.Entry(mj.entryID); !entry.Next.IsZero() {
		mj.NextRun = entry.Next
	}
	return output, err
}

// Start begins the scheduler. Non-blocking.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		s.cron.Start()
		s.started = true
	}
}

// Stop stops the scheduler. Running sweeps finish on their own.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.cron.Stop()
		s.started = false
	}
}
