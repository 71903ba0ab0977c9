// Package alert
package alert

import (
	"fmt"
	"sync"
	"time"

	"github.com/pairs-sentinel/internal/metrics"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type Kind string

const (
	KindZScoreHigh           Kind = "zscore_high"
	KindZScoreLow            Kind = "zscore_low"
	KindZScoreExtremeHigh    Kind = "zscore_extreme_high"
	KindZScoreExtremeLow     Kind = "zscore_extreme_low"
	KindCorrelationBreakdown Kind = "correlation_breakdown"
	KindPriceThreshold       Kind = "price_threshold"
	KindVolumeSpike          Kind = "volume_spike"
	KindCustom               Kind = "custom"
)

type Comparator string

const (
	Above Comparator = "gt"
	Below Comparator = "lt"
)

// Rule is one alert definition: trigger when Metric crosses Threshold in the
// Comparator direction. Rules are config-owned; the manager owns their state.
type Rule struct {
	ID         string     `json:"id" yaml:"id"`
	Kind       Kind       `json:"kind" yaml:"kind"`
	Metric     string     `json:"metric" yaml:"metric"`
	Comparator Comparator `json:"comparator" yaml:"comparator"`
	Threshold  float64    `json:"threshold" yaml:"threshold"`
	Severity   Severity   `json:"severity" yaml:"severity"`
	Enabled    bool       `json:"enabled" yaml:"enabled"`
}

func (r *Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule id cannot be empty")
	}
	if r.Metric == "" {
		return fmt.Errorf("rule %s: metric cannot be empty", r.ID)
	}
	if r.Comparator != Above && r.Comparator != Below {
		return fmt.Errorf("rule %s: unknown comparator %q", r.ID, r.Comparator)
	}
	return nil
}

// Event is one triggered alert. Events are append-only history entries.
type Event struct {
	RuleID      string             `json:"rule_id"`
	Kind        Kind               `json:"kind"`
	Message     string             `json:"message"`
	Severity    Severity           `json:"severity"`
	TriggeredAt time.Time          `json:"triggered_at"`
	Payload     map[string]float64 `json:"payload"`
}

// Manager evaluates rules against metric sets and keeps bounded history. It
// exclusively owns all rule and event state; consumers poll Evaluate/History
// and are never pushed to.
//
// Re-trigger policy: Evaluate returns an Event for every cycle where a rule's
// predicate is true (continuous re-fire); the bounded history records only
// the Idle-to-Triggered edge, so consecutive duplicates are not re-appended.
type Manager struct {
	mu           sync.Mutex
	rules        []Rule
	active       map[string]bool
	history      []Event
	historyLimit int
	now          func() time.Time
}

// NewManager creates an empty manager. historyLimit bounds retained events
// with FIFO eviction; 0 means unlimited (documented growth risk).
func NewManager(historyLimit int) *Manager {
	return &Manager{
		active:       make(map[string]bool),
		historyLimit: historyLimit,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// NewDefaultManager returns a manager with the default rule set: z-score
// bands at +-2.0, extremes at +-3.0 and correlation breakdown below
// correlationFloor.
func NewDefaultManager(historyLimit int, correlationFloor float64) *Manager {
	m := NewManager(historyLimit)
	m.AddZScoreRule("zscore-high", 2.0, true)
	m.AddZScoreRule("zscore-low", -2.0, false)
	m.AddZScoreExtremeRule("zscore-extreme-high", 3.0, true)
	m.AddZScoreExtremeRule("zscore-extreme-low", -3.0, false)
	m.AddCorrelationRule("correlation-breakdown", correlationFloor)
	return m
}

func (m *Manager) AddRule(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rules {
		if existing.ID == r.ID {
			return fmt.Errorf("rule %s already exists", r.ID)
		}
	}
	m.rules = append(m.rules, r)
	return nil
}

// AddZScoreRule registers a z-score threshold rule.
func (m *Manager) AddZScoreRule(id string, threshold float64, above bool) {
	kind := KindZScoreLow
	cmp := Below
	if above {
		kind = KindZScoreHigh
		cmp = Above
	}
	_ = m.AddRule(Rule{
		ID: id, Kind: kind, Metric: "zscore", Comparator: cmp,
		Threshold: threshold, Severity: SeverityHigh, Enabled: true,
	})
}

// AddZScoreExtremeRule registers a +-3 sigma style rule.
func (m *Manager) AddZScoreExtremeRule(id string, threshold float64, above bool) {
	kind := KindZScoreExtremeLow
	cmp := Below
	if above {
		kind = KindZScoreExtremeHigh
		cmp = Above
	}
	_ = m.AddRule(Rule{
		ID: id, Kind: kind, Metric: "zscore", Comparator: cmp,
		Threshold: threshold, Severity: SeverityHigh, Enabled: true,
	})
}

// AddPriceRule registers a price threshold rule for one symbol.
func (m *Manager) AddPriceRule(id, symbol string, threshold float64, above bool) {
	cmp := Below
	if above {
		cmp = Above
	}
	_ = m.AddRule(Rule{
		ID: id, Kind: KindPriceThreshold, Metric: "price_" + symbol, Comparator: cmp,
		Threshold: threshold, Severity: SeverityMedium, Enabled: true,
	})
}

// AddCorrelationRule registers a correlation-breakdown rule (correlation
// drops below floor).
func (m *Manager) AddCorrelationRule(id string, floor float64) {
	_ = m.AddRule(Rule{
		ID: id, Kind: KindCorrelationBreakdown, Metric: "correlation", Comparator: Below,
		Threshold: floor, Severity: SeverityMedium, Enabled: true,
	})
}

// AddVolumeSpikeRule registers a per-symbol volume spike rule.
func (m *Manager) AddVolumeSpikeRule(id, symbol string, threshold float64) {
	_ = m.AddRule(Rule{
		ID: id, Kind: KindVolumeSpike, Metric: "volume_" + symbol, Comparator: Above,
		Threshold: threshold, Severity: SeverityMedium, Enabled: true,
	})
}

// RemoveRule removes a rule and its state by id.
func (m *Manager) RemoveRule(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			delete(m.active, id)
			return
		}
	}
}

// Rules returns a copy of the registered rules.
func (m *Manager) Rules() []Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Rule, len(m.rules))
	copy(out, m.rules)
	return out
}

// Evaluate checks every enabled rule against the metric set and returns the
// events for rules whose predicate is true this cycle. A rule whose metric is
// absent from the set is not evaluated and keeps its state: absent values
// never compare as zero.
func (m *Manager) Evaluate(metricSet map[string]float64) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var triggered []Event

	for _, r := range m.rules {
		if !r.Enabled {
			continue
		}
		v, ok := metricSet[r.Metric]
		if !ok {
			continue
		}

		fire := (r.Comparator == Above && v > r.Threshold) ||
			(r.Comparator == Below && v < r.Threshold)

		if !fire {
			m.active[r.ID] = false
			continue
		}

		ev := Event{
			RuleID:      r.ID,
			Kind:        r.Kind,
			Message:     fmt.Sprintf("%s: %s %s %g (value %g)", r.ID, r.Metric, r.Comparator, r.Threshold, v),
			Severity:    r.Severity,
			TriggeredAt: now,
			Payload:     copyMetrics(metricSet),
		}
		triggered = append(triggered, ev)
		metrics.AlertsFired.WithLabelValues(r.ID).Inc()

		if !m.active[r.ID] {
			m.active[r.ID] = true
			m.appendHistory(ev)
		}
	}

	return triggered
}

// appendHistory appends with FIFO eviction beyond the configured capacity.
func (m *Manager) appendHistory(ev Event) {
	m.history = append(m.history, ev)
	if m.historyLimit > 0 && len(m.history) > m.historyLimit {
		m.history = m.history[len(m.history)-m.historyLimit:]
	}
}

// ActiveRules returns the rules currently in the Triggered state.
func (m *Manager) ActiveRules() []Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Rule
	for _, r := range m.rules {
		if m.active[r.ID] {
			out = append(out, r)
		}
	}
	return out
}

// History returns up to limit most recent history entries (all if limit <= 0).
func (m *Manager) History(limit int) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Event, n)
	copy(out, m.history[len(m.history)-n:])
	return out
}

func copyMetrics(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
