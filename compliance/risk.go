package compliance

import (
	"math"

	"github.com/spectracehq/audit-sdk-go/trace"
)

const defaultExponent = 0.7

// RiskConfig controls how violations aggregate into a risk score. The zero
// value falls back to the default weight table and exponent.
type RiskConfig struct {
	// Weights maps severity to its contribution.
	Weights map[trace.Severity]float64
	// Exponent is the denominator power applied to the violation count.
	// Sub-linear (below 1) so many low-severity violations still raise risk,
	// while a single critical one is not diluted to noise.
	Exponent float64
}

// DefaultRiskConfig returns the stock weight table and exponent.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		Weights: map[trace.Severity]float64{
			trace.SeverityCritical: 1.0,
			trace.SeverityHigh:     0.7,
			trace.SeverityMedium:   0.4,
			trace.SeverityLow:      0.2,
		},
		Exponent: defaultExponent,
	}
}

// CalculateRisk aggregates violations into a score in [0, 1]. No violations
// is exactly 0.0.
func CalculateRisk(violations []trace.ViolationRecord, cfg RiskConfig) float64 {
	if len(violations) == 0 {
		return 0.0
	}

	weights := cfg.Weights
	if weights == nil {
		weights = DefaultRiskConfig().Weights
	}
	exponent := cfg.Exponent
	if exponent == 0 {
		exponent = defaultExponent
	}

	var sum float64
	for _, v := range violations {
		sum += weights[v.Severity]
	}

	risk := sum / math.Pow(float64(len(violations)), exponent)
	if risk > 1 {
		return 1
	}
	if risk < 0 {
		return 0
	}
	return risk
}
