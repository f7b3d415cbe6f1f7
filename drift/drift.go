// Package drift classifies how an agent's risk scores have moved over time
// by comparing a recent window of executions against everything before it.
package drift

import (
	"errors"
	"fmt"

	"github.com/spectracehq/audit-sdk-go/trace"
)

var ErrInsufficientHistory = errors.New("drift: insufficient history")

const (
	defaultRecentWindow    = 10
	defaultIncreasingAbove = 0.1
	defaultDecreasingBelow = -0.1
)

// Config holds the windowing policy. Zero fields fall back to the defaults
// (recent window 10, thresholds at plus and minus 0.1).
type Config struct {
	// RecentWindow is the number of newest entries compared against the
	// rest of the history.
	RecentWindow int
	// IncreasingAbove classifies scores strictly above it as increasing.
	IncreasingAbove float64
	// DecreasingBelow classifies scores strictly below it as decreasing.
	DecreasingBelow float64
}

func DefaultConfig() Config {
	return Config{
		RecentWindow:    defaultRecentWindow,
		IncreasingAbove: defaultIncreasingAbove,
		DecreasingBelow: defaultDecreasingBelow,
	}
}

func (c Config) normalized() Config {
	if c.RecentWindow <= 0 {
		c.RecentWindow = defaultRecentWindow
	}
	if c.IncreasingAbove == 0 {
		c.IncreasingAbove = defaultIncreasingAbove
	}
	if c.DecreasingBelow == 0 {
		c.DecreasingBelow = defaultDecreasingBelow
	}
	return c
}

// Compute splits an oldest-first risk history into a recent window (the last
// RecentWindow entries) and a historical window (everything before it) and
// returns the signed difference of their means. Histories shorter than twice
// the recent window fail with ErrInsufficientHistory rather than classifying
// drift from too little data. Pure: identical input always yields an
// identical result.
func Compute(history []float64, cfg Config) (trace.DriftResult, error) {
	cfg = cfg.normalized()

	if len(history) < 2*cfg.RecentWindow {
		return trace.DriftResult{}, fmt.Errorf(
			"drift needs at least %d scores, have %d: %w",
			2*cfg.RecentWindow, len(history), ErrInsufficientHistory)
	}

	split := len(history) - cfg.RecentWindow
	historicalAvg := mean(history[:split])
	recentAvg := mean(history[split:])
	score := recentAvg - historicalAvg

	trend := trace.TrendStable
	switch {
	case score > cfg.IncreasingAbove:
		trend = trace.TrendIncreasing
	case score < cfg.DecreasingBelow:
		trend = trace.TrendDecreasing
	}

	return trace.DriftResult{
		Score:         score,
		Trend:         trend,
		RecentAvg:     recentAvg,
		HistoricalAvg: historicalAvg,
		RecentWindow:  cfg.RecentWindow,
		HistoryLen:    len(history),
	}, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
