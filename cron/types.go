package cron

import "time"

// SweepConfig selects what a scheduled drift sweep covers.
type SweepConfig struct {
	// AgentID restricts the sweep to one agent. Empty sweeps every agent
	// known to the store.
	AgentID string `json:"agentId,omitempty"`
	// HistoryLimit caps how many of the newest risk scores are fetched per
	// agent. Zero uses the sweeper default.
	HistoryLimit int `json:"historyLimit,omitempty"`
	// RecentWindow overrides the drift window for this job. Zero keeps the
	// sweeper's configured window.
	RecentWindow int `json:"recentWindow,omitempty"`
}

// Job is one recurring sweep registered with the scheduler.
type Job struct {
	Name     string      `json:"name"`
	CronExpr string      `json:"cronExpr"`
	Config   SweepConfig `json:"config"`
	Enabled  bool        `json:"enabled"`
	LastRun  time.Time   `json:"lastRun,omitempty"`
	NextRun  time.Time   `json:"nextRun,omitempty"`
	LastErr  string      `json:"lastError,omitempty"`
	RunCount int         `json:"runCount"`
}

// JobRun is one recorded execution of a job.
type JobRun struct {
	At         time.Time `json:"at"`
	DurationMS int64     `json:"durationMs"`
	Trigger    string    `json:"trigger"`
	Status     string    `json:"status"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
}
