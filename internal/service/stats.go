package service

import (
	"fmt"

	cronus "github.com/E3dvis/cronustraining"
)

// ETA strings for the two non-numeric cases.
const (
	etaInfinite = "inf"     // unbounded run
	etaUnknown  = "unknown" // no successful attempt observed yet
)

// statsAggregator is a synchronous fold over the outcome stream. It is
// owned by the run collector goroutine; nothing else writes it.
type statsAggregator struct {
	successCount         int
	failCount            int
	totalSuccessDuration float64
	successWavelengths   []float64
	failWavelengths      []float64
}

func (a *statsAggregator) observe(o cronus.AttemptOutcome) {
	if o.Success {
		a.successCount++
		a.totalSuccessDuration += o.Duration
		a.successWavelengths = append(a.successWavelengths, o.Wavelength)
		return
	}
	a.failCount++
	a.failWavelengths = append(a.failWavelengths, o.Wavelength)
}

func (a *statsAggregator) attempts() int {
	return a.successCount + a.failCount
}

// averageDuration is the mean settle time of successful attempts, 0 when
// none succeeded yet.
func (a *statsAggregator) averageDuration() float64 {
	if a.successCount == 0 {
		return 0
	}
	return a.totalSuccessDuration / float64(a.successCount)
}

// successRate is successes over attempts, 0 (never NaN) with no attempts.
func (a *statsAggregator) successRate() float64 {
	total := a.attempts()
	if total == 0 {
		return 0
	}
	return float64(a.successCount) / float64(total)
}

// eta estimates the remaining wall-clock time of a bounded run:
// remaining cycles times the observed per-cycle cost (average settle
// duration plus the configured wait plus the fixed cycle margin).
// Cycles retried during connectivity outages are not accounted for; the
// estimate undercounts during outages.
func (a *statsAggregator) eta(cycles int, waitTime, margin float64) string {
	if cycles <= 0 {
		return etaInfinite
	}
	remaining := cycles - a.attempts()
	if remaining <= 0 {
		return "0s"
	}
	if a.successCount == 0 {
		return etaUnknown
	}
	perCycle := a.averageDuration() + waitTime + margin
	return formatETA(float64(remaining) * perCycle)
}

func formatETA(seconds float64) string {
	total := int(seconds)
	if total < 3600 {
		return fmt.Sprintf("%02d:%02d", total/60, total%60)
	}
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
