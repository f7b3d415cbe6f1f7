package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/spectracehq/audit-sdk-go/trace"
)

var titler = cases.Title(language.Und)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// riskString colors a risk score by the alerting bands: red from 0.7, yellow
// from 0.4.
func riskString(score float64) string {
	text := fmt.Sprintf("%.2f", score)
	switch {
	case score >= 0.7:
		return color.New(color.FgRed, color.Bold).Sprint(text)
	case score >= 0.4:
		return color.New(color.FgYellow).Sprint(text)
	default:
		return color.New(color.FgGreen).Sprint(text)
	}
}

func severityString(s trace.Severity) string {
	text := titler.String(string(s))
	switch s {
	case trace.SeverityCritical:
		return color.New(color.FgRed, color.Bold).Sprint(text)
	case trace.SeverityHigh:
		return color.New(color.FgRed).Sprint(text)
	case trace.SeverityMedium:
		return color.New(color.FgYellow).Sprint(text)
	default:
		return text
	}
}

func trendString(t trace.Trend) string {
	text := titler.String(string(t))
	switch t {
	case trace.TrendIncreasing:
		return color.New(color.FgRed).Sprint(text)
	case trace.TrendDecreasing:
		return color.New(color.FgGreen).Sprint(text)
	default:
		return text
	}
}

func ago(t *time.Time) string {
	if t == nil {
		return "unknown"
	}
	return humanize.Time(*t)
}

func printResult(w io.Writer, res *trace.AuditResult) {
	label := "Audit"
	if res.Preview {
		label = "Preview audit"
	}
	fmt.Fprintf(w, "%s %s of trace %s", label, res.AuditID, res.TraceID)
	if res.AgentID != "" {
		fmt.Fprintf(w, " (agent %s)", res.AgentID)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Risk:       %s\n", riskString(res.RiskScore))
	fmt.Fprintf(w, "  Deception:  %s\n", riskString(res.DeceptionProbability))
	if len(res.Flags) > 0 {
		fmt.Fprintf(w, "  Flags:      %v\n", res.Flags)
	}
	fmt.Fprintf(w, "  Violations: %d\n", len(res.Violations))
	for _, v := range res.Violations {
		loc := "trace"
		if v.StepIndex != nil {
			loc = fmt.Sprintf("step %d", *v.StepIndex)
		}
		fmt.Fprintf(w, "    %s  %s at %s", severityString(v.Severity), v.RuleID, loc)
		if v.Description != "" {
			fmt.Fprintf(w, ": %s", v.Description)
		}
		fmt.Fprintln(w)
	}
	if res.CompletedAt != nil {
		fmt.Fprintf(w, "  Completed:  %s\n", ago(res.CompletedAt))
	}
}
