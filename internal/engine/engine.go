// Package engine drives an upgrade run: scan, analyze, plan, then execute
// each step and wait for a human to confirm it before moving on.
//
// The engine is strictly sequential. One operation runs at a time and every
// oracle or source call inside it completes before the next begins, so the
// active runtime version always matches the step being processed.
package engine

import (
	"sync"
	"time"

	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/eventlog"
	"github.com/felixgeelhaar/hopper/internal/log"
	"github.com/felixgeelhaar/hopper/internal/metrics"
	"github.com/felixgeelhaar/hopper/internal/oracle"
	"github.com/felixgeelhaar/hopper/internal/plan"
	"github.com/felixgeelhaar/hopper/internal/retry"
	"github.com/felixgeelhaar/hopper/internal/source"
	"github.com/felixgeelhaar/hopper/internal/workspace"
)

// Config controls an engine
type Config struct {
	// TargetVersion is the framework version the plan upgrades to.
	TargetVersion string `mapstructure:"target_version" yaml:"target_version"`
	// Manifest is the path that must be present for analysis.
	Manifest string `mapstructure:"manifest" yaml:"manifest"`
	// CriticalFiles are fetched at scan time, matched by exact path or path suffix.
	CriticalFiles []string `mapstructure:"critical_files" yaml:"critical_files"`
	// MaxCriticalFiles caps the files fetched at scan time.
	MaxCriticalFiles int `mapstructure:"max_critical_files" yaml:"max_critical_files"`
	// StepFilter selects the files each step transforms.
	StepFilter workspace.Filter `mapstructure:"step_filter" yaml:"step_filter"`
	Profile    oracle.Profile   `mapstructure:"profile" yaml:"profile"`
	Retry      retry.Config     `mapstructure:"-" yaml:"-"`
}

// DefaultConfig returns the configuration for Angular projects.
func DefaultConfig() Config {
	return Config{
		TargetVersion: "16.0.0",
		Manifest:      "package.json",
		CriticalFiles: []string{
			"package.json",
			"angular.json",
			"src/main.ts",
			"src/app/app.module.ts",
		},
		MaxCriticalFiles: 10,
		StepFilter:       workspace.DefaultFilter(),
		Profile:          oracle.DefaultProfile(),
		Retry:            retry.DefaultConfig(),
	}
}

// Engine orchestrates one upgrade run at a time.
type Engine struct {
	// op serialises operations; a second caller gets ErrBusy.
	op sync.Mutex

	source  source.Provider
	oracles oracle.Oracles
	cfg     Config
	events  *eventlog.Log
	metrics *metrics.Metrics
	logger  *log.Logger
	now     func() time.Time

	// state is guarded by mu for observers; only operations holding op write it.
	mu           sync.RWMutex
	phase        Phase
	role         eventlog.Role
	sourceRef    string
	environment  string
	analysis     *plan.ProjectAnalysis
	plan         *plan.UpgradePlan
	files        *workspace.Snapshot
	preview      string
	failedStep   int
	waitingSince time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithMetrics records engine metrics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger mirrors the event log to logger.
func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithEventLog uses an existing event log.
func WithEventLog(l *eventlog.Log) Option {
	return func(e *Engine) { e.events = l }
}

// WithClock overrides the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine reading from src and consulting oracles.
func New(src source.Provider, oracles oracle.Oracles, opts ...Option) (*Engine, error) {
	if src == nil {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "engine requires a source provider")
	}
	if !oracles.Complete() {
		return nil, errors.New(errors.ErrCodeConfigInvalid, "engine requires analysis, planning, transformation and preview oracles")
	}

	e := &Engine{
		source:     src,
		oracles:    oracles,
		cfg:        DefaultConfig(),
		metrics:    metrics.Nop(),
		logger:     log.Default(),
		now:        time.Now,
		phase:      PhaseIdle,
		role:       eventlog.RoleIdle,
		files:      workspace.New(nil),
		failedStep: -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.events == nil {
		e.events = eventlog.New(eventlog.WithLogger(e.logger.With("component", "engine")))
	}
	if e.cfg.MaxCriticalFiles <= 0 {
		e.cfg.MaxCriticalFiles = DefaultConfig().MaxCriticalFiles
	}
	if e.cfg.Manifest == "" {
		e.cfg.Manifest = DefaultConfig().Manifest
	}
	return e, nil
}

// acquire takes the operation lock or reports that the engine is busy.
func (e *Engine) acquire(operation string) error {
	if !e.op.TryLock() {
		return errors.NewBusyError(operation)
	}
	return nil
}

// update applies fn to the run state under the observer lock.
func (e *Engine) update(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn()
}

func (e *Engine) setPhase(phase Phase, role eventlog.Role) {
	e.update(func() {
		e.phase = phase
		e.role = role
	})
}

// Subscribe returns a channel receiving every event appended from now on.
// Each state change is accompanied by at least one event.
func (e *Engine) Subscribe(buffer int) <-chan eventlog.Entry {
	return e.events.Subscribe(buffer)
}

// Events returns the event log.
func (e *Engine) Events() *eventlog.Log {
	return e.events
}

// Close releases subscribers.
func (e *Engine) Close() {
	e.events.Close()
}

// SetSourceCredentials passes a token to the source provider when it accepts one.
func (e *Engine) SetSourceCredentials(token string) bool {
	setter, ok := e.source.(source.CredentialSetter)
	if !ok {
		e.events.Warnf(eventlog.RoleScanner, "Source %s does not use credentials.", e.source.Name())
		return false
	}
	setter.SetCredentials(token)
	e.events.Infof(eventlog.RoleScanner, "Source credentials updated.")
	return true
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) countError(err error, component string) {
	code, ok := errors.CodeOf(err)
	if !ok {
		code = "UNKNOWN"
	}
	e.metrics.Errors.WithLabelValues(string(code), component).Inc()
}

