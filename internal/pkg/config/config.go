package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	SchedulerGreedy = "greedy"
	SchedulerGemini = "gemini"
)

// Planner holds the tunables of the calendar aggregation and scheduling engine.
type Planner struct {
	// Timezone is the IANA zone used when a user has none configured.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WorkStart and WorkEnd bound focus blocks and auto-scheduling ("HH:MM").
	WorkStart string `yaml:"work_start" json:"work_start"`
	WorkEnd   string `yaml:"work_end" json:"work_end"`

	MinFocusMinutes    int `yaml:"min_focus_minutes" json:"min_focus_minutes"`
	DefaultTaskMinutes int `yaml:"default_task_minutes" json:"default_task_minutes"`

	// AccountTimeout caps a single account fetch; a timeout counts as a provider error.
	AccountTimeout time.Duration `yaml:"account_timeout" json:"account_timeout"`
	// FetchConcurrency is the number of accounts fetched in parallel (1 = sequential).
	FetchConcurrency int `yaml:"fetch_concurrency" json:"fetch_concurrency"`

	// RefreshCron drives the background credential refresh sweep.
	RefreshCron string `yaml:"refresh_cron" json:"refresh_cron"`
	// RefreshAhead selects accounts whose token expires within this window.
	RefreshAhead time.Duration `yaml:"refresh_ahead" json:"refresh_ahead"`

	Scheduler   string `yaml:"scheduler" json:"scheduler"`
	GeminiModel string `yaml:"gemini_model" json:"gemini_model"`

	MaxDailyTasks   int `yaml:"max_daily_tasks" json:"max_daily_tasks"`
	MaxDailyMinutes int `yaml:"max_daily_minutes" json:"max_daily_minutes"`
}

// Default returns the built-in planner configuration.
func Default() *Planner {
	return &Planner{
		Timezone:           "UTC",
		WorkStart:          "08:00",
		WorkEnd:            "18:00",
		MinFocusMinutes:    30,
		DefaultTaskMinutes: 30,
		AccountTimeout:     8 * time.Second,
		FetchConcurrency:   4,
		RefreshCron:        "*/10 * * * *",
		RefreshAhead:       15 * time.Minute,
		Scheduler:          SchedulerGreedy,
		GeminiModel:        "gemini-1.5-flash",
		MaxDailyTasks:      8,
		MaxDailyMinutes:    480,
	}
}

// Normalize fills zero or invalid values with defaults so older files keep working.
func (p *Planner) Normalize() {
	def := Default()
	if p.Timezone == "" {
		p.Timezone = def.Timezone
	}
	if _, err := time.LoadLocation(p.Timezone); err != nil {
		p.Timezone = def.Timezone
	}
	if _, err := ParseClock(p.WorkStart); err != nil {
		p.WorkStart = def.WorkStart
	}
	if _, err := ParseClock(p.WorkEnd); err != nil {
		p.WorkEnd = def.WorkEnd
	}
	start, _ := ParseClock(p.WorkStart)
	end, _ := ParseClock(p.WorkEnd)
	if end <= start {
		p.WorkStart, p.WorkEnd = def.WorkStart, def.WorkEnd
	}
	if p.MinFocusMinutes <= 0 {
		p.MinFocusMinutes = def.MinFocusMinutes
	}
	if p.DefaultTaskMinutes <= 0 {
		p.DefaultTaskMinutes = def.DefaultTaskMinutes
	}
	if p.AccountTimeout <= 0 {
		p.AccountTimeout = def.AccountTimeout
	}
	if p.FetchConcurrency <= 0 {
		p.FetchConcurrency = def.FetchConcurrency
	}
	if p.RefreshCron == "" {
		p.RefreshCron = def.RefreshCron
	}
	if p.RefreshAhead <= 0 {
		p.RefreshAhead = def.RefreshAhead
	}
	switch p.Scheduler {
	case SchedulerGreedy, SchedulerGemini:
	default:
		p.Scheduler = SchedulerGreedy
	}
	if p.GeminiModel == "" {
		p.GeminiModel = def.GeminiModel
	}
	if p.MaxDailyTasks <= 0 {
		p.MaxDailyTasks = def.MaxDailyTasks
	}
	if p.MaxDailyMinutes <= 0 {
		p.MaxDailyMinutes = def.MaxDailyMinutes
	}
}

// Location returns the configured default timezone.
func (p *Planner) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// WorkHours returns the working window offsets from midnight.
func (p *Planner) WorkHours() (time.Duration, time.Duration) {
	start, _ := ParseClock(p.WorkStart)
	end, _ := ParseClock(p.WorkEnd)
	return start, end
}

// ParseClock parses "HH:MM" into an offset from midnight.
func ParseClock(v string) (time.Duration, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q: %w", v, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Load reads the YAML file at path. A missing file is created with defaults.
func Load(path string) (*Planner, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Planner
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Planner) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".planner-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}
