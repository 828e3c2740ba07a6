package cronustraining

import "time"

// Run states reported by the per-channel engine.
const (
	RunStateIdle         = "Idle"
	RunStateRangeUnknown = "RangeUnknown"
	RunStateRunning      = "Running"
	RunStatePowerCurve   = "PowerCurve"
	RunStateCompleted    = "Completed"
	RunStateAborted      = "Aborted"
	RunStateError        = "Error" // reserved for API parity; the engine has no fatal path
)

// Run-event journal entry types.
const (
	EventRunStarted         = "RUN_STARTED"
	EventRunFinished        = "RUN_FINISHED"
	EventConnectionLost     = "CONNECTION_LOST"
	EventPowerCurveFinished = "POWER_CURVE_FINISHED"
)

// DeviceRange is the hardware-reported wavelength interval of a channel,
// in nm. A nil *DeviceRange means the device could not report its range.
type DeviceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// ResolvedRange is the test interval after clamping the requested bounds
// into the device range.
type ResolvedRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// TestParameters configures one endurance run. TestMin/TestMax default to
// the device bounds when nil. Cycles <= 0 means unbounded.
type TestParameters struct {
	TestMin           *float64 `json:"test_min,omitempty"`
	TestMax           *float64 `json:"test_max,omitempty"`
	WaitTime          float64  `json:"wait_time"` // post-set settle wait, seconds
	Cycles            int      `json:"cycles"`
	MeasurePowerCurve bool     `json:"measure_power_curve"`
}

// AttemptOutcome records one set-wavelength-and-settle exchange.
// Outcomes are append-only and owned by the run that produced them.
type AttemptOutcome struct {
	Timestamp  time.Time `json:"timestamp"`
	Wavelength float64   `json:"wavelength"`
	Success    bool      `json:"success"`
	Duration   float64   `json:"duration_s"` // wall time of the attempt, seconds
}

// PowerSample is one point of the optional post-run power sweep.
type PowerSample struct {
	Wavelength float64 `json:"wavelength"`
	Power      float64 `json:"power"`
}

// RunSnapshot is the live, immutable view of a channel's run published to
// HTTP and WebSocket consumers.
type RunSnapshot struct {
	RunID          string         `json:"run_id,omitempty"`
	Channel        int            `json:"channel"`
	State          string         `json:"state"`
	StartedAt      time.Time      `json:"started_at,omitempty"`
	Device         *DeviceRange   `json:"device_range,omitempty"`
	Resolved       *ResolvedRange `json:"resolved_range,omitempty"`
	Cycles         int            `json:"cycles"` // 0 = unbounded
	Attempts       int            `json:"attempts"`
	SuccessCount   int            `json:"success_count"`
	FailCount      int            `json:"fail_count"`
	SuccessRate    float64        `json:"success_rate"`
	AvgDuration    float64        `json:"avg_duration_s"`
	ETA            string         `json:"eta"`
	LastWavelength float64        `json:"last_wavelength,omitempty"`
}

// RunEvent is a single journal entry.
type RunEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Channel     int       `json:"channel"`
	Type        string    `json:"type"` // RUN_STARTED | RUN_FINISHED | CONNECTION_LOST | POWER_CURVE_FINISHED
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}

// RunRecord is the persisted summary of a finished run, consumed by
// report/export collaborators.
type RunRecord struct {
	RunID        string    `json:"run_id"`
	Channel      int       `json:"channel"`
	State        string    `json:"state"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Attempts     int       `json:"attempts"`
	SuccessCount int       `json:"success_count"`
	FailCount    int       `json:"fail_count"`
	AvgDuration  float64   `json:"avg_duration_s"`
	PowerSamples int       `json:"power_samples"`
}

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"` // don't expose hash
}
