// Package spikes flags abnormal month-over-month shifts in per-tool traffic:
// low-baseline tools suddenly becoming active, large relative spikes, and
// sustained level shifts found by changepoint detection.
package spikes

import (
	"math"
	"sort"

	"atlaslens/internal/config"
	"atlaslens/internal/loader"
	"atlaslens/internal/mlkit"
)

// Spike event types.
const (
	TypeNewBaselineJump = "new_baseline_jump"
	TypeMoMSpike        = "mom_spike"
	TypeLevelShift      = "level_shift"
)

// Event is one detected shift. The populated fields depend on EventType:
// jumps carry absolute values, percentage events carry MagnitudePct, level
// shifts additionally carry the before/after baselines.
type Event struct {
	Tool      string `json:"tool"`
	Month     string `json:"month"`
	EventType string `json:"event_type"`

	MagnitudePct   *float64 `json:"magnitude_pct,omitempty"`
	AbsoluteJump   *int     `json:"absolute_jump,omitempty"`
	FromValue      *int     `json:"from_value,omitempty"`
	ToValue        *int     `json:"to_value,omitempty"`
	BaselineBefore *float64 `json:"baseline_before,omitempty"`
	BaselineAfter  *float64 `json:"baseline_after,omitempty"`
}

// Changepointer is the optional level-shift capability. Detectors report
// availability once; an unavailable detector simply disables level-shift
// events without affecting the rule-based checks.
type Changepointer interface {
	Available() bool
	Changepoints(series []float64) []int
}

// PELTChangepointer detects mean shifts with the PELT dynamic program.
type PELTChangepointer struct{}

// Available always reports true; the implementation is compiled in.
func (PELTChangepointer) Available() bool { return true }

// Changepoints returns interior segment-start indexes.
func (PELTChangepointer) Changepoints(series []float64) []int {
	penalty := math.Max(3.0, math.Log(float64(len(series)))*2.0)
	return mlkit.PELTMeanShift(series, penalty)
}

// Detector applies the spike rules and the optional changepoint strategy.
type Detector struct {
	policy       config.Policy
	changepoints Changepointer
}

// NewDetector selects the changepoint strategy once at construction.
func NewDetector(policy config.Policy) *Detector {
	return &Detector{policy: policy, changepoints: PELTChangepointer{}}
}

// Detect scans every tool's series. Events are keyed by (tool, month, type)
// so a month is never reported twice for the same reason, and the result is
// ordered by magnitude descending.
func (d *Detector) Detect(pivot *loader.MonthlyPivot) []Event {
	if pivot.Empty() {
		return []Event{}
	}

	events := make(map[[3]string]Event)

	for _, tool := range pivot.Tools {
		series := pivot.Series(tool)

		for i := 1; i < len(series); i++ {
			prevRaw := series[i-1]
			curr := series[i]
			prev := math.Max(prevRaw, 1)
			pct := (curr - prevRaw) / prev
			month := loader.MonthLabel(pivot.Months[i])

			// A near-zero baseline makes percentages meaningless; report the
			// surge as a new baseline instead. Takes precedence over rule 2.
			if prevRaw < d.policy.SpikeLowBaseline && curr >= d.policy.SpikeJumpMinCurrent {
				jump := int(curr - prevRaw)
				from, to := int(prevRaw), int(curr)
				events[[3]string{tool, month, TypeNewBaselineJump}] = Event{
					Tool:         tool,
					Month:        month,
					EventType:    TypeNewBaselineJump,
					AbsoluteJump: &jump,
					FromValue:    &from,
					ToValue:      &to,
				}
				continue
			}

			if prevRaw >= d.policy.SpikeLowBaseline && pct >= d.policy.SpikeMoMPct && curr >= d.policy.SpikeMoMMinCurrent {
				magnitude := mlkit.Round1(pct * 100)
				from, to := int(prevRaw), int(curr)
				events[[3]string{tool, month, TypeMoMSpike}] = Event{
					Tool:         tool,
					Month:        month,
					EventType:    TypeMoMSpike,
					MagnitudePct: &magnitude,
					FromValue:    &from,
					ToValue:      &to,
				}
			}
		}

		d.detectLevelShifts(tool, pivot, series, events)
	}

	out := make([]Event, 0, len(events))
	for _, ev := range events {
		out = append(out, ev)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := magnitude(out[i]), magnitude(out[j])
		if si != sj {
			return si > sj
		}
		if out[i].Tool != out[j].Tool {
			return out[i].Tool < out[j].Tool
		}
		return out[i].Month < out[j].Month
	})
	return out
}

func (d *Detector) detectLevelShifts(tool string, pivot *loader.MonthlyPivot, series []float64, events map[[3]string]Event) {
	if !d.changepoints.Available() {
		return
	}
	if len(series) < d.policy.ForecastMinPoints || mlkit.Sum(series) == 0 {
		return
	}

	for _, cp := range d.changepoints.Changepoints(series) {
		if cp <= 0 || cp >= len(series) {
			continue
		}
		before := math.Max(mlkit.Mean(series[:cp]), 1)
		after := mlkit.Mean(series[cp:])
		shift := (after - before) / before
		if math.Abs(shift) < d.policy.LevelShiftMinMagnitude {
			continue
		}
		if before < d.policy.LevelShiftMinMean && after < d.policy.LevelShiftMinMean {
			continue
		}

		month := loader.MonthLabel(pivot.Months[cp])
		magnitude := mlkit.Round1(shift * 100)
		beforeR := mlkit.Round2(before)
		afterR := mlkit.Round2(after)
		events[[3]string{tool, month, TypeLevelShift}] = Event{
			Tool:           tool,
			Month:          month,
			EventType:      TypeLevelShift,
			MagnitudePct:   &magnitude,
			BaselineBefore: &beforeR,
			BaselineAfter:  &afterR,
		}
	}
}

// magnitude ranks events for output: percentage-based events by absolute
// percent, jump events by absolute count delta.
func magnitude(ev Event) float64 {
	if ev.MagnitudePct != nil {
		return math.Abs(*ev.MagnitudePct)
	}
	if ev.AbsoluteJump != nil {
		return math.Abs(float64(*ev.AbsoluteJump))
	}
	return 0
}
