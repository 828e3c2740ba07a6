package service

import (
	"context"
	"time"

	cronus "github.com/E3dvis/cronustraining"
	"github.com/E3dvis/cronustraining/internal/device"
	"github.com/E3dvis/cronustraining/internal/logger"
	"github.com/E3dvis/cronustraining/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// TestRuns owns the per-channel run lifecycle.
type TestRuns interface {
	Start(channel int, overrides RunOverrides) (cronus.RunSnapshot, error)
	Stop(channel int) error
	Snapshot(channel int) cronus.RunSnapshot
	Results(channel int) ([]cronus.AttemptOutcome, []cronus.PowerSample, error)
	StopAll()
}

// Connectivity is the background reachability probe. Run blocks until ctx
// is canceled; Latest returns the last published status.
type Connectivity interface {
	Run(ctx context.Context)
	Latest() ProbeStatus
	Updates() <-chan ProbeStatus
}

// Device exposes the direct device operations the HTTP surface needs
// outside of a run.
type Device interface {
	Range(channel int) *cronus.DeviceRange
	Off() bool
}

// EventLog exposes the persisted run-event journal.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]cronus.RunEvent, error)
}

// DeviceClient is the slice of the device API the services consume.
// *device.Client satisfies it; tests substitute simulated devices.
type DeviceClient interface {
	Status() *device.StatusResponse
	Mode() *device.ModeResponse
	ChannelStatus(channel int) *device.ChannelStatus
	Reachable(channel int) bool
	Range(channel int) *cronus.DeviceRange
	SetWavelength(channel int, wl float64) *device.SetResult
	Power(channel int) *device.PowerReading
	Off() *device.OffResult
}

// RunOverrides carries per-request parameter overrides applied on top of
// the channel's configured defaults. Nil fields keep the default.
type RunOverrides struct {
	TestMin           *float64 `json:"test_min,omitempty"`
	TestMax           *float64 `json:"test_max,omitempty"`
	WaitTime          *float64 `json:"wait_time,omitempty"`
	Cycles            *int     `json:"cycles,omitempty"`
	MeasurePowerCurve *bool    `json:"measure_power_curve,omitempty"`
}

// LogFilter supports journal filtering by time range, type and channel.
type LogFilter struct {
	From    time.Time // inclusive; zero means no lower bound
	To      time.Time // inclusive; zero means no upper bound
	Type    string    // "" matches all event types
	Channel int       // 0 matches all channels
}

// Timings collects every polling interval and budget of the engine. The
// defaults are the device-facing production values; tests shrink them.
type Timings struct {
	ActivationPollInterval time.Duration // pause between activation polls
	ActivationPollBudget   int           // successful activation polls before giving up
	CompletionPollInterval time.Duration // pause between completion polls
	CompletionPollBudget   int           // successful completion polls before giving up
	ReconnectPause         time.Duration // pause before retrying an unreachable cycle
	CycleMargin            time.Duration // safety margin added to the configured wait between cycles
	PowerSettle            time.Duration // settle wait before reading power in the sweep phase
	ProbeInterval          time.Duration // connectivity probe period
	StopJoinWait           time.Duration // bounded wait for a stopping run to observe the flag
}

func DefaultTimings() Timings {
	return Timings{
		ActivationPollInterval: 500 * time.Millisecond,
		ActivationPollBudget:   10,
		CompletionPollInterval: time.Second,
		CompletionPollBudget:   120,
		ReconnectPause:         2 * time.Second,
		CycleMargin:            3 * time.Second,
		PowerSettle:            3 * time.Second,
		ProbeInterval:          3 * time.Second,
		StopJoinWait:           500 * time.Millisecond,
	}
}

// RunsConfig is the explicit configuration of the run manager; no
// process-wide mutable state is consulted at run time.
type RunsConfig struct {
	LogDir   string
	Channels int
	Defaults map[int]cronus.TestParameters
	Timings  Timings
}

type Service struct {
	TestRuns
	Connectivity
	Device
	EventLog
	Authorization
}

// NewService wires the device client and repository layer into concrete
// services.
func NewService(client DeviceClient, repos *repository.Repository, log *logger.Logger, cfg RunsConfig, signingKey string) *Service {
	return &Service{
		TestRuns:      NewTestRunService(client, repos.EventRepo, repos.RunRepo, log, cfg),
		Connectivity:  NewProbeService(client, cfg.Timings.ProbeInterval, log),
		Device:        NewDeviceService(client),
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: NewAuthService(repos.Auth, signingKey),
	}
}
