// Package recovery implements the engine's error taxonomy and the
// classify/retry/restart/emergency-stop state machine described in §4.14
// and §7. It generalizes the atomic-counters-plus-ring-buffer style used
// for performance statistics elsewhere in this codebase's reference
// lineage into a mutex-guarded recovery ledger — deliberately mutex-guarded
// rather than lock-free, since §5 states this state is never touched from
// the audio thread.
package recovery

import (
	"errors"
	"sync"
	"time"
)

// Kind is one of the eight error classes from §7.
type Kind int

const (
	KindInitialization Kind = iota
	KindFormat
	KindRealtimeSafety
	KindGraph
	KindPerformance
	KindResource
	KindHardware
	KindConversion
)

func (k Kind) String() string {
	switch k {
	case KindInitialization:
		return "initialization"
	case KindFormat:
		return "format"
	case KindRealtimeSafety:
		return "realtime_safety"
	case KindGraph:
		return "graph"
	case KindPerformance:
		return "performance"
	case KindResource:
		return "resource"
	case KindHardware:
		return "hardware"
	case KindConversion:
		return "conversion"
	default:
		return "unknown"
	}
}

// Severity orders error classes: warning < minor < major < critical.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityMinor
	SeverityMajor
	SeverityCritical
)

// defaultSeverity is the §7 taxonomy table's kind-to-severity mapping.
func defaultSeverity(k Kind) Severity {
	switch k {
	case KindInitialization, KindHardware:
		return SeverityCritical
	case KindFormat, KindRealtimeSafety, KindGraph, KindConversion:
		return SeverityMajor
	case KindResource:
		return SeverityMinor
	case KindPerformance:
		return SeverityWarning
	default:
		return SeverityWarning
	}
}

// Strategy is the recovery action chosen for an error occurrence.
type Strategy int

const (
	StrategyIgnore Strategy = iota
	StrategyRetry
	StrategyRestartSubsystem
	StrategyEmergencyStop
)

// Sentinel errors for the eight taxonomy kinds, wrapped by Error so callers
// can errors.Is/errors.As across the component boundary.
var (
	ErrInitialization  = errors.New("initialization error")
	ErrFormat          = errors.New("format error")
	ErrRealtimeSafety  = errors.New("realtime safety violation")
	ErrGraph           = errors.New("graph error")
	ErrPerformance     = errors.New("performance warning")
	ErrResource        = errors.New("resource error")
	ErrHardware        = errors.New("hardware error")
	ErrConversion      = errors.New("conversion error")
)

func sentinelFor(k Kind) error {
	switch k {
	case KindInitialization:
		return ErrInitialization
	case KindFormat:
		return ErrFormat
	case KindRealtimeSafety:
		return ErrRealtimeSafety
	case KindGraph:
		return ErrGraph
	case KindPerformance:
		return ErrPerformance
	case KindResource:
		return ErrResource
	case KindHardware:
		return ErrHardware
	case KindConversion:
		return ErrConversion
	default:
		return errors.New("unknown error")
	}
}

// Error wraps a raw cause with its taxonomy classification.
type Error struct {
	Kind     Kind
	Severity Severity
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Kind.String() + ": " + e.Cause.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return sentinelFor(e.Kind) }

// New wraps cause as an Error of the given kind, with the kind's default
// severity from the §7 taxonomy table.
func New(k Kind, cause error) *Error {
	return &Error{Kind: k, Severity: defaultSeverity(k), Cause: cause}
}

// classEvent is one occurrence in a class's sliding window.
type classEvent struct {
	at time.Time
}

type classState struct {
	window         []classEvent
	emergencyLocked bool
}

// history entry for the observability surface.
type historyEntry struct {
	kind      Kind
	severity  Severity
	strategy  Strategy
	recovered bool
	at        time.Time
}

// Policy configures the sliding-window emergency escalation.
type Policy struct {
	EmergencyThreshold int           // escalate to emergency_stop once occurrences within WindowSeconds exceed this
	WindowSeconds      float64
	MaxRetries         int
}

// DefaultPolicy mirrors common defensive defaults: more than 5 occurrences
// of the same class within 10 seconds (the 6th) escalates that class to
// emergency_stop.
func DefaultPolicy() Policy {
	return Policy{EmergencyThreshold: 5, WindowSeconds: 10, MaxRetries: 3}
}

// Recovery is the engine-wide error classification and recovery ledger.
type Recovery struct {
	mu       sync.Mutex
	policy   Policy
	classes  map[Kind]*classState
	history  []historyEntry
	maxHist  int
	total    int
	recovered int

	now func() time.Time // overridable for deterministic tests
}

// NewRecovery creates a Recovery ledger with the given policy.
func NewRecovery(policy Policy) *Recovery {
	return &Recovery{
		policy:  policy,
		classes: make(map[Kind]*classState),
		maxHist: 64,
		now:     time.Now,
	}
}

func (r *Recovery) classFor(k Kind) *classState {
	c, ok := r.classes[k]
	if !ok {
		c = &classState{}
		r.classes[k] = c
	}
	return c
}

// strategyFor chooses the recovery strategy for a severity, honoring a
// class already locked into emergency_stop by the sliding window.
func strategyFor(sev Severity, locked bool) Strategy {
	if locked {
		return StrategyEmergencyStop
	}
	switch sev {
	case SeverityCritical:
		return StrategyEmergencyStop
	case SeverityMajor:
		return StrategyRestartSubsystem
	case SeverityMinor:
		return StrategyRetry
	default:
		return StrategyIgnore
	}
}

// Trigger classifies and records an error occurrence, escalating to
// emergency_stop if the class's sliding-window count exceeds
// EmergencyThreshold within WindowSeconds. Returns whether the engine
// recovered (true for ignore/retry/restart_subsystem, false for
// emergency_stop).
func (r *Recovery) Trigger(e *Error) (recovered bool, strategy Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	cls := r.classFor(e.Kind)
	cls.window = append(cls.window, classEvent{at: now})
	cutoff := now.Add(-time.Duration(r.policy.WindowSeconds * float64(time.Second)))
	kept := cls.window[:0]
	for _, ev := range cls.window {
		if ev.at.After(cutoff) {
			kept = append(kept, ev)
		}
	}
	cls.window = kept

	if len(cls.window) > r.policy.EmergencyThreshold {
		cls.emergencyLocked = true
	}

	strategy = strategyFor(e.Severity, cls.emergencyLocked)
	recovered = strategy != StrategyEmergencyStop

	r.total++
	if recovered {
		r.recovered++
	}
	r.history = append(r.history, historyEntry{kind: e.Kind, severity: e.Severity, strategy: strategy, recovered: recovered, at: now})
	if len(r.history) > r.maxHist {
		r.history = r.history[len(r.history)-r.maxHist:]
	}
	return recovered, strategy
}

// Reset clears the emergency lock and sliding window for a class.
// Engine.Reset does not call it.
func (r *Recovery) Reset(k Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.classes[k]; ok {
		c.emergencyLocked = false
		c.window = nil
	}
}

// Stats is the observability snapshot: totals, success rate, last N errors.
type Stats struct {
	Total       int
	Recovered   int
	SuccessRate float64
	LastErrors  []string
}

func (r *Recovery) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	rate := 1.0
	if r.total > 0 {
		rate = float64(r.recovered) / float64(r.total)
	}
	last := make([]string, 0, len(r.history))
	for _, h := range r.history {
		last = append(last, h.kind.String())
	}
	return Stats{Total: r.total, Recovered: r.recovered, SuccessRate: rate, LastErrors: last}
}
