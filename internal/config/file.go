package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/spectracehq/audit-sdk-go/alert"
	"github.com/spectracehq/audit-sdk-go/drift"
	"github.com/spectracehq/audit-sdk-go/trace"
)

// File is the YAML pipeline configuration read by `spectrace --config`.
// Every section is optional; zero values fall back to the package defaults.
type File struct {
	Embedder EmbedderSection `yaml:"embedder"`
	// Rules points at a JSON ruleset file replacing the built-in rules.
	Rules   string         `yaml:"rules"`
	Drift   DriftSection   `yaml:"drift"`
	History HistorySection `yaml:"history"`
	Monitor MonitorSection `yaml:"monitor"`
	Alerts  AlertsSection  `yaml:"alerts"`
}

type EmbedderSection struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

type DriftSection struct {
	RecentWindow    int     `yaml:"recentWindow"`
	IncreasingAbove float64 `yaml:"increasingAbove"`
	DecreasingBelow float64 `yaml:"decreasingBelow"`
}

type HistorySection struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlitePath"`
	RedisAddr  string `yaml:"redisAddr"`
}

type MonitorSection struct {
	Addr   string `yaml:"addr"`
	APIKey string `yaml:"apiKey"`
}

type AlertsSection struct {
	MinRisk      float64 `yaml:"minRisk"`
	MinDeception float64 `yaml:"minDeception"`
	MinSeverity  string  `yaml:"minSeverity"`
	// Webhooks maps a channel name to its endpoint URL.
	Webhooks map[string]string `yaml:"webhooks"`
}

// Load reads and decodes a pipeline config file.
func Load(path string) (File, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return File{}, fmt.Errorf("config path is required")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to resolve config path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return File{}, fmt.Errorf("failed to read config file %q: %w", absPath, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("failed to decode config file %q as YAML: %w", absPath, err)
	}

	f.Embedder.Provider = strings.TrimSpace(f.Embedder.Provider)
	f.Embedder.Model = strings.TrimSpace(f.Embedder.Model)
	f.Rules = strings.TrimSpace(f.Rules)
	f.History.Backend = strings.TrimSpace(f.History.Backend)
	f.History.SQLitePath = strings.TrimSpace(f.History.SQLitePath)
	f.History.RedisAddr = strings.TrimSpace(f.History.RedisAddr)
	f.Monitor.Addr = strings.TrimSpace(f.Monitor.Addr)
	f.Monitor.APIKey = strings.TrimSpace(f.Monitor.APIKey)
	f.Alerts.MinSeverity = strings.ToLower(strings.TrimSpace(f.Alerts.MinSeverity))
	return f, nil
}

// DriftConfig maps the drift section onto the analyzer's config. Zero fields
// keep the analyzer defaults.
func (f File) DriftConfig() drift.Config {
	return drift.Config{
		RecentWindow:    f.Drift.RecentWindow,
		IncreasingAbove: f.Drift.IncreasingAbove,
		DecreasingBelow: f.Drift.DecreasingBelow,
	}
}

// AlertPolicy maps the alerts section onto an alert policy, starting from
// the default thresholds.
func (f File) AlertPolicy() alert.Policy {
	p := alert.DefaultPolicy()
	if f.Alerts.MinRisk > 0 {
		p.MinRisk = f.Alerts.MinRisk
	}
	if f.Alerts.MinDeception > 0 {
		p.MinDeception = f.Alerts.MinDeception
	}
	if sev := trace.Severity(f.Alerts.MinSeverity); sev.Valid() {
		p.MinSeverity = sev
	}
	return p
}

// AlertRouter builds a router with a webhook notifier per configured
// channel. Channels without a webhook fall back to log delivery.
func (f File) AlertRouter() (*alert.Router, error) {
	opts := make([]alert.RouterOption, 0, len(f.Alerts.Webhooks)+4)
	for _, ch := range []alert.Channel{alert.ChannelEmail, alert.ChannelSlack, alert.ChannelDiscord, alert.ChannelSMS} {
		opts = append(opts, alert.WithNotifier(ch, alert.LogNotifier{}))
	}
	for name, url := range f.Alerts.Webhooks {
		n, err := alert.NewWebhook(url)
		if err != nil {
			return nil, fmt.Errorf("webhook for channel %q: %w", name, err)
		}
		opts = append(opts, alert.WithNotifier(alert.Channel(strings.ToLower(strings.TrimSpace(name))), n))
	}
	return alert.NewRouter(opts...), nil
}
