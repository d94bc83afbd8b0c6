package pressure

import (
	"fmt"
	"log/slog"

	"github.com/LISSConsulting/LISSTech.Mnemos/internal/compaction"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/finding"
	"github.com/LISSConsulting/LISSTech.Mnemos/internal/retention"
)

const (
	StatusNoAction          compaction.Status = "no_action_needed"
	StatusCompressionFailed compaction.Status = "compression_failed"
)

// Reasons attached to StatusNoAction.
const (
	ReasonTooSmall  = "memory_too_small"
	ReasonNoTrigger = "no_triggers_matched"
	ReasonDisabled  = "auto_compression_disabled"
)

const (
	minAutoCompress  = 25
	healthyBelow     = 150
	manualTrigger    = "manual"
	manualTriggerMsg = "Manual compression"
)

// Loader reads the whole log.
type Loader interface {
	LoadAll() ([]finding.Record, error)
}

// Compressor runs a reversible compression.
type Compressor interface {
	CompressReversible(keepRecent int) (compaction.CompressResult, error)
}

// Result is the outcome of an automatic compression check. It never carries
// an error value: failures are reported as StatusCompressionFailed with the
// cause in Error.
type Result struct {
	compaction.CompressResult `yaml:",inline"`

	Reason             string `json:"reason,omitempty" yaml:"reason,omitempty"`
	Trigger            string `json:"trigger,omitempty" yaml:"trigger,omitempty"`
	TriggerDescription string `json:"trigger_description,omitempty" yaml:"trigger_description,omitempty"`
	Pressure           Level  `json:"memory_pressure,omitempty" yaml:"memory_pressure,omitempty"`
	Auto               bool   `json:"auto_compression,omitempty" yaml:"auto_compression,omitempty"`
	Error              string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Compressed reports whether the check rewrote the log.
func (r Result) Compressed() bool { return r.Status == compaction.StatusCompressed }

// Monitor evaluates the trigger table against a log and compresses it when
// a trigger fires.
type Monitor struct {
	log      Loader
	engine   Compressor
	triggers []Trigger
	enabled  bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithOverrides adjusts named triggers.
func WithOverrides(overrides map[string]Override) Option {
	return func(m *Monitor) { m.triggers = ApplyOverrides(m.triggers, overrides) }
}

// WithEnabled turns the post-write check on or off. Forced compressions run
// either way.
func WithEnabled(enabled bool) Option {
	return func(m *Monitor) { m.enabled = enabled }
}

// New returns an enabled Monitor using the default trigger table.
func New(log Loader, engine Compressor, opts ...Option) *Monitor {
	m := &Monitor{
		log:      log,
		engine:   engine,
		triggers: DefaultTriggers(),
		enabled:  true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Triggers returns the effective trigger table.
func (m *Monitor) Triggers() []Trigger {
	out := make([]Trigger, len(m.triggers))
	copy(out, m.triggers)
	return out
}

// State measures the current log.
func (m *Monitor) State() (State, error) {
	records, err := m.log.LoadAll()
	if err != nil {
		return State{}, fmt.Errorf("pressure: load: %w", err)
	}
	return Measure(records), nil
}

// AfterWrite is the post-append hook. It never blocks a write: every
// outcome, including failure, comes back as a Result.
func (m *Monitor) AfterWrite() Result {
	if !m.enabled {
		return Result{CompressResult: compaction.CompressResult{Status: StatusNoAction}, Reason: ReasonDisabled}
	}
	return m.AutoCompress(false)
}

// AutoCompress compresses the log when a trigger fires, or unconditionally
// when force is set. Panics and errors below this point become
// StatusCompressionFailed.
func (m *Monitor) AutoCompress(force bool) (res Result) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("pressure: auto-compression panicked", "panic", p)
			res = failed(fmt.Errorf("panic: %v", p))
		}
	}()

	state, err := m.State()
	if err != nil {
		slog.Error("pressure: auto-compression failed", "err", err)
		return failed(err)
	}

	if state.Total < minAutoCompress && !force {
		return Result{CompressResult: compaction.CompressResult{Status: StatusNoAction}, Reason: ReasonTooSmall}
	}

	trigger, ok := Evaluate(state, m.triggers)
	if !ok && !force {
		return Result{CompressResult: compaction.CompressResult{Status: StatusNoAction}, Reason: ReasonNoTrigger}
	}

	keep := retention.DefaultKeepRecent
	name, desc := manualTrigger, manualTriggerMsg
	if ok {
		keep, name, desc = trigger.KeepRecent, trigger.Name, trigger.Description
	}
	slog.Info("pressure: auto-compression triggered", "trigger", name, "entries", state.Total, "pressure", state.Level())

	cr, err := m.engine.CompressReversible(keep)
	if err != nil {
		slog.Error("pressure: auto-compression failed", "trigger", name, "err", err)
		return failed(err)
	}

	res = Result{CompressResult: cr}
	if res.Compressed() {
		res.Trigger = name
		res.TriggerDescription = desc
		res.Pressure = state.Level()
		res.Auto = true
		slog.Info("pressure: auto-compression completed", "from", cr.OriginalCount, "to", cr.CompressedCount)
	}
	return res
}

func failed(err error) Result {
	return Result{
		CompressResult: compaction.CompressResult{Status: StatusCompressionFailed},
		Error:          err.Error(),
		Auto:           true,
	}
}

// Recommendation says which trigger would fire now.
type Recommendation struct {
	ShouldCompress     bool   `json:"should_compress" yaml:"should_compress"`
	TriggerName        string `json:"trigger_name,omitempty" yaml:"trigger_name,omitempty"`
	TriggerDescription string `json:"trigger_description,omitempty" yaml:"trigger_description,omitempty"`
	KeepRecent         int    `json:"keep_recent,omitempty" yaml:"keep_recent,omitempty"`
}

// Report is the health view of a log.
type Report struct {
	State          State          `json:"memory_state" yaml:"memory_state"`
	Pressure       Level          `json:"pressure_level" yaml:"pressure_level"`
	Recommendation Recommendation `json:"compression_recommendation" yaml:"compression_recommendation"`
	Health         string         `json:"health" yaml:"health"`
}

// Healthy reports whether the log is below the pressure threshold.
func (r Report) Healthy() bool { return r.Health == "healthy" }

// Status measures the log and reports what the monitor would do.
func (m *Monitor) Status() (Report, error) {
	state, err := m.State()
	if err != nil {
		return Report{}, err
	}
	rep := Report{State: state, Pressure: state.Level(), Health: "healthy"}
	if state.Total >= healthyBelow {
		rep.Health = "under_pressure"
	}
	if t, ok := Evaluate(state, m.triggers); ok {
		rep.Recommendation = Recommendation{
			ShouldCompress:     true,
			TriggerName:        t.Name,
			TriggerDescription: t.Description,
			KeepRecent:         t.KeepRecent,
		}
	}
	return rep, nil
}
