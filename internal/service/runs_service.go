package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	cronus "github.com/E3dvis/cronustraining"
	"github.com/E3dvis/cronustraining/internal/logger"
	"github.com/E3dvis/cronustraining/internal/repository"

	"github.com/google/uuid"
)

// Domain errors for run control.
var (
	ErrUnknownChannel = errors.New("unknown channel")
	ErrAlreadyRunning = errors.New("a run is already active on this channel")
	ErrRangeUnknown   = errors.New("device wavelength range is unknown; cannot start")
	ErrNoResults      = errors.New("no finished run on this channel")
)

// TestRunService manages at most one active run per channel. Each run is
// a single-use object; restarting a channel constructs a fresh run. The
// service's map and published snapshots are the only lock-guarded state;
// everything inside a run is owned by the run's own goroutines.
type TestRunService struct {
	client DeviceClient
	events repository.EventRepo
	runs   repository.RunRepo
	log    *logger.Logger
	cfg    RunsConfig

	// newRng is swapped in tests for a seeded source.
	newRng func() *rand.Rand

	mu        sync.RWMutex
	active    map[int]*testRun
	finished  map[int]*testRun
	snapshots map[int]cronus.RunSnapshot
}

func NewTestRunService(client DeviceClient, events repository.EventRepo, runs repository.RunRepo, log *logger.Logger, cfg RunsConfig) *TestRunService {
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}
	return &TestRunService{
		client:    client,
		events:    events,
		runs:      runs,
		log:       log,
		cfg:       cfg,
		newRng:    func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) },
		active:    make(map[int]*testRun),
		finished:  make(map[int]*testRun),
		snapshots: make(map[int]cronus.RunSnapshot),
	}
}

// Start resolves parameters against the hardware range, constructs a new
// run and launches it. The device range is fetched once, here; a device
// that cannot report its range prevents the start entirely.
func (s *TestRunService) Start(channel int, overrides RunOverrides) (cronus.RunSnapshot, error) {
	if channel < 1 || channel > s.cfg.Channels {
		return cronus.RunSnapshot{}, fmt.Errorf("%w: %d", ErrUnknownChannel, channel)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Presence in the map is the single-run gate. Entries are removed by
	// the collector once the run's stream closes, so probing the run's
	// own state here would race a freshly launched goroutine.
	if _, ok := s.active[channel]; ok {
		return s.snapshots[channel], ErrAlreadyRunning
	}

	params := mergeParams(s.cfg.Defaults[channel], overrides)

	dev := s.client.Range(channel)
	resolved := ResolveRange(params.TestMin, params.TestMax, dev)
	if resolved == nil {
		snap := cronus.RunSnapshot{Channel: channel, State: cronus.RunStateRangeUnknown, ETA: etaUnknown}
		s.snapshots[channel] = snap
		return snap, ErrRangeUnknown
	}

	run := newTestRun(uuid.NewString(), channel, params, *dev, *resolved,
		s.client, s.cfg.Timings, s.log, s.newRng(), s.cfg.LogDir)
	s.active[channel] = run

	snap := cronus.RunSnapshot{
		RunID:     run.id,
		Channel:   channel,
		State:     cronus.RunStateRunning,
		StartedAt: time.Now(),
		Device:    dev,
		Resolved:  resolved,
		Cycles:    max(params.Cycles, 0),
		ETA:       (&statsAggregator{}).eta(params.Cycles, params.WaitTime, s.cfg.Timings.CycleMargin.Seconds()),
	}
	s.snapshots[channel] = snap

	s.journal(channel, cronus.EventRunStarted, fmt.Sprintf("run started on Ch%d", channel), map[string]any{
		"run_id": run.id,
		"min":    resolved.Min,
		"max":    resolved.Max,
		"cycles": params.Cycles,
	})
	s.log.Infow("run_started", "channel", channel, "run_id", run.id,
		"min", resolved.Min, "max", resolved.Max, "cycles", params.Cycles)

	run.start()
	go s.collect(run, snap)
	return snap, nil
}

// Stop requests cancellation of the channel's active run. Stopping a
// channel with no active run is a no-op.
func (s *TestRunService) Stop(channel int) error {
	if channel < 1 || channel > s.cfg.Channels {
		return fmt.Errorf("%w: %d", ErrUnknownChannel, channel)
	}
	s.mu.RLock()
	run := s.active[channel]
	s.mu.RUnlock()
	if run == nil {
		return nil
	}
	run.Stop()
	return nil
}

// StopAll stops every active run; used during graceful shutdown.
func (s *TestRunService) StopAll() {
	s.mu.RLock()
	runs := make([]*testRun, 0, len(s.active))
	for _, r := range s.active {
		runs = append(runs, r)
	}
	s.mu.RUnlock()
	for _, r := range runs {
		r.Stop()
	}
}

// Snapshot returns the latest published view of the channel.
func (s *TestRunService) Snapshot(channel int) cronus.RunSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if snap, ok := s.snapshots[channel]; ok {
		return snap
	}
	return cronus.RunSnapshot{Channel: channel, State: cronus.RunStateIdle, ETA: etaUnknown}
}

// Results returns the outcome and power-sample lists of the channel's
// last finished run.
func (s *TestRunService) Results(channel int) ([]cronus.AttemptOutcome, []cronus.PowerSample, error) {
	s.mu.RLock()
	run := s.finished[channel]
	s.mu.RUnlock()
	if run == nil {
		return nil, nil, ErrNoResults
	}
	<-run.done
	return run.outcomes, run.samples, nil
}

// collect is the consumer side of the run's event stream: it folds
// outcomes through the stats aggregator, publishes snapshots, journals
// connectivity transitions and persists the summary when the run ends.
func (s *TestRunService) collect(run *testRun, snap cronus.RunSnapshot) {
	agg := &statsAggregator{}
	margin := s.cfg.Timings.CycleMargin.Seconds()
	connectionLost := false

	for u := range run.updates {
		switch u.kind {
		case updateState:
			snap.State = u.state
		case updateWavelength:
			snap.LastWavelength = u.wavelength
		case updateOutcome:
			connectionLost = false
			agg.observe(*u.outcome)
			snap.Attempts = agg.attempts()
			snap.SuccessCount = agg.successCount
			snap.FailCount = agg.failCount
			snap.SuccessRate = agg.successRate()
			snap.AvgDuration = agg.averageDuration()
			snap.ETA = agg.eta(run.params.Cycles, run.params.WaitTime, margin)
		case updateConnectionLost:
			if !connectionLost {
				// Journal once per contiguous outage, not per retry.
				s.journal(run.channel, cronus.EventConnectionLost, "device unreachable, retrying", nil)
			}
			connectionLost = true
			s.log.Warnw("connection_lost", "channel", run.channel, "run_id", run.id)
		case updateSample:
			s.log.Infow("power_sample", "channel", run.channel,
				"wavelength", u.sample.Wavelength, "power", u.sample.Power)
		}
		s.publish(run.channel, snap)
	}

	// The stream is closed: the run goroutine is done and its result
	// lists are safe to read.
	s.finish(run, snap, agg)
}

func (s *TestRunService) finish(run *testRun, snap cronus.RunSnapshot, agg *statsAggregator) {
	finishedAt := time.Now()

	s.mu.Lock()
	s.snapshots[run.channel] = snap
	s.finished[run.channel] = run
	if s.active[run.channel] == run {
		delete(s.active, run.channel)
	}
	s.mu.Unlock()

	if run.params.MeasurePowerCurve && snap.State == cronus.RunStateCompleted {
		s.journal(run.channel, cronus.EventPowerCurveFinished,
			fmt.Sprintf("power curve finished with %d samples", len(run.samples)),
			map[string]any{"run_id": run.id, "samples": len(run.samples)})
	}
	s.journal(run.channel, cronus.EventRunFinished,
		fmt.Sprintf("run finished in state %s", snap.State),
		map[string]any{"run_id": run.id, "attempts": agg.attempts(), "failures": agg.failCount})

	record := cronus.RunRecord{
		RunID:        run.id,
		Channel:      run.channel,
		State:        snap.State,
		StartedAt:    run.startedAt,
		FinishedAt:   finishedAt,
		Attempts:     agg.attempts(),
		SuccessCount: agg.successCount,
		FailCount:    agg.failCount,
		AvgDuration:  agg.averageDuration(),
		PowerSamples: len(run.samples),
	}
	if err := s.runs.Insert(context.Background(), record); err != nil {
		s.log.Errorw("run_record_insert_failed", "run_id", run.id, "err", err)
	}
	s.log.Infow("run_finished", "channel", run.channel, "run_id", run.id,
		"state", snap.State, "attempts", record.Attempts, "failures", record.FailCount)
}

func (s *TestRunService) publish(channel int, snap cronus.RunSnapshot) {
	s.mu.Lock()
	s.snapshots[channel] = snap
	s.mu.Unlock()
}

func (s *TestRunService) journal(channel int, typ, description string, meta map[string]any) {
	err := s.events.Append(context.Background(), cronus.RunEvent{
		Channel:     channel,
		Type:        typ,
		Description: description,
		Metadata:    meta,
	})
	if err != nil {
		s.log.Errorw("journal_append_failed", "channel", channel, "type", typ, "err", err)
	}
}

func mergeParams(defaults cronus.TestParameters, ov RunOverrides) cronus.TestParameters {
	p := defaults
	if ov.TestMin != nil {
		p.TestMin = ov.TestMin
	}
	if ov.TestMax != nil {
		p.TestMax = ov.TestMax
	}
	if ov.WaitTime != nil {
		p.WaitTime = *ov.WaitTime
	}
	if ov.Cycles != nil {
		p.Cycles = *ov.Cycles
	}
	if ov.MeasurePowerCurve != nil {
		p.MeasurePowerCurve = *ov.MeasurePowerCurve
	}
	if p.WaitTime < 0 {
		p.WaitTime = 0
	}
	return p
}
