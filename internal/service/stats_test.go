package service

import (
	"testing"

	cronus "github.com/E3dvis/cronustraining"
)

func TestStatsAggregator_CountsAndAverages(t *testing.T) {
	agg := &statsAggregator{}

	if agg.attempts() != 0 || agg.successRate() != 0 || agg.averageDuration() != 0 {
		t.Fatalf("fresh aggregator must report zeros, got attempts=%d rate=%v avg=%v",
			agg.attempts(), agg.successRate(), agg.averageDuration())
	}

	agg.observe(cronus.AttemptOutcome{Wavelength: 700, Success: true, Duration: 2})
	agg.observe(cronus.AttemptOutcome{Wavelength: 800, Success: true, Duration: 4})
	agg.observe(cronus.AttemptOutcome{Wavelength: 900, Success: false, Duration: 120})

	if agg.attempts() != 3 || agg.successCount != 2 || agg.failCount != 1 {
		t.Fatalf("counts: attempts=%d success=%d fail=%d", agg.attempts(), agg.successCount, agg.failCount)
	}
	// failed attempt durations never pollute the average
	if got := agg.averageDuration(); got != 3 {
		t.Fatalf("average duration: got %v, want 3", got)
	}
	if got := agg.successRate(); got != 2.0/3.0 {
		t.Fatalf("success rate: got %v", got)
	}
	if len(agg.failWavelengths) != 1 || agg.failWavelengths[0] != 900 {
		t.Fatalf("fail wavelengths: %v", agg.failWavelengths)
	}
}

func TestStatsAggregator_ETA(t *testing.T) {
	agg := &statsAggregator{}

	// unbounded runs have no finish line
	if got := agg.eta(0, 3, 3); got != etaInfinite {
		t.Fatalf("unbounded: got %q", got)
	}
	if got := agg.eta(-1, 3, 3); got != etaInfinite {
		t.Fatalf("negative cycles: got %q", got)
	}

	// bounded but no successful attempt yet
	if got := agg.eta(10, 3, 3); got != etaUnknown {
		t.Fatalf("no data: got %q", got)
	}

	// after a failure only, still unknown
	agg.observe(cronus.AttemptOutcome{Success: false, Duration: 60})
	if got := agg.eta(10, 3, 3); got != etaUnknown {
		t.Fatalf("failures only: got %q", got)
	}

	// with an average in hand: remaining * (avg + wait + margin)
	agg.observe(cronus.AttemptOutcome{Success: true, Duration: 4})
	// 8 remaining * (4 + 3 + 3) = 80s
	if got := agg.eta(10, 3, 3); got != "01:20" {
		t.Fatalf("eta: got %q, want 01:20", got)
	}

	// all cycles done
	done := &statsAggregator{}
	for i := 0; i < 5; i++ {
		done.observe(cronus.AttemptOutcome{Success: true, Duration: 1})
	}
	if got := done.eta(5, 0, 0); got != "0s" {
		t.Fatalf("finished: got %q", got)
	}
}

func TestFormatETA(t *testing.T) {
	cases := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{59, "00:59"},
		{80, "01:20"},
		{3599, "59:59"},
		{3600, "01:00:00"},
		{7325, "02:02:05"},
	}
	for _, tc := range cases {
		if got := formatETA(tc.seconds); got != tc.want {
			t.Fatalf("formatETA(%v) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}
