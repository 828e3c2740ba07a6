package service

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	cronus "github.com/E3dvis/cronustraining"
	"github.com/E3dvis/cronustraining/internal/logger"
)

// powerCurveStep is the sweep grid spacing in nm. Intervals narrower than
// one step are sampled at their midpoint only.
const powerCurveStep = 10.0

type updateKind int

const (
	updateState updateKind = iota
	updateWavelength
	updateOutcome
	updateConnectionLost
	updateSample
)

// runUpdate is one item of the run's bounded event stream to its
// collector. The engine never calls back into consumer state directly.
type runUpdate struct {
	kind       updateKind
	state      string
	wavelength float64
	outcome    *cronus.AttemptOutcome
	sample     *cronus.PowerSample
}

// testRun is a single-use run object for one channel. The run goroutine
// is the only writer of outcomes, samples and the failure log; consumers
// may read them only after done is closed.
type testRun struct {
	id       string
	channel  int
	params   cronus.TestParameters
	device   cronus.DeviceRange
	resolved cronus.ResolvedRange

	client  DeviceClient
	attempt *attemptProtocol
	timings Timings
	log     *logger.Logger
	rng     *rand.Rand
	logDir  string

	updates chan runUpdate
	cancel  context.CancelFunc
	done    chan struct{}
	stopped atomic.Bool
	state   atomic.Value // string, one of the RunState constants

	startedAt time.Time
	outcomes  []cronus.AttemptOutcome
	samples   []cronus.PowerSample
	failLog   *os.File
}

func newTestRun(id string, channel int, params cronus.TestParameters, dev cronus.DeviceRange, resolved cronus.ResolvedRange,
	client DeviceClient, timings Timings, log *logger.Logger, rng *rand.Rand, logDir string) *testRun {
	r := &testRun{
		id:       id,
		channel:  channel,
		params:   params,
		device:   dev,
		resolved: resolved,
		client:   client,
		timings:  timings,
		log:      log,
		rng:      rng,
		logDir:   logDir,
		updates:  make(chan runUpdate, 64),
		done:     make(chan struct{}),
	}
	r.state.Store(cronus.RunStateIdle)
	r.attempt = &attemptProtocol{
		client:           client,
		timings:          timings,
		log:              log,
		onConnectionLost: func() { r.emit(runUpdate{kind: updateConnectionLost}) },
	}
	return r
}

// start launches the run goroutine. Call exactly once.
func (r *testRun) start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.startedAt = time.Now()
	go r.run(ctx)
}

// Stop requests cooperative cancellation and waits, bounded, for the loop
// to observe it. Safe to call from any goroutine, any number of times,
// including on a finished run.
func (r *testRun) Stop() {
	r.stopped.Store(true)
	if r.cancel != nil {
		r.cancel()
	}
	select {
	case <-r.done:
	case <-time.After(r.timings.StopJoinWait):
		// The run finishes its in-flight poll or sleep on its own time.
	}
}

func (r *testRun) currentState() string {
	return r.state.Load().(string)
}

func (r *testRun) setState(s string) {
	r.state.Store(s)
	r.emit(runUpdate{kind: updateState, state: s})
}

func (r *testRun) emit(u runUpdate) {
	r.updates <- u
}

func (r *testRun) run(ctx context.Context) {
	defer close(r.done)
	defer close(r.updates)
	defer r.closeFailLog()

	r.openFailLog()
	r.setState(cronus.RunStateRunning)

	attempts := 0
	for !r.stopped.Load() && (r.params.Cycles <= 0 || attempts < r.params.Cycles) {
		if !r.client.Reachable(r.channel) {
			// Outages are invisible to the tally: nothing is recorded and
			// the same cycle is retried after a fixed pause.
			r.emit(runUpdate{kind: updateConnectionLost})
			sleepCtx(ctx, r.timings.ReconnectPause)
			continue
		}

		wl := roundWavelength(r.resolved.Min + r.rng.Float64()*(r.resolved.Max-r.resolved.Min))
		wl = clampWavelength(wl, r.device)
		r.emit(runUpdate{kind: updateWavelength, wavelength: wl})

		success, duration := r.attempt.do(ctx, r.channel, wl)
		attempts++
		out := cronus.AttemptOutcome{
			Timestamp:  time.Now(),
			Wavelength: wl,
			Success:    success,
			Duration:   duration,
		}
		r.outcomes = append(r.outcomes, out)
		r.emit(runUpdate{kind: updateOutcome, outcome: &out})
		if !success {
			r.logFailure(out)
		}

		if r.stopped.Load() {
			break
		}
		sleepCtx(ctx, time.Duration(r.params.WaitTime*float64(time.Second))+r.timings.CycleMargin)
	}

	if !r.stopped.Load() && r.params.MeasurePowerCurve {
		r.setState(cronus.RunStatePowerCurve)
		r.powerCurve(ctx)
		// A sweep that has begun always ends in Completed, stopped or not.
		r.setState(cronus.RunStateCompleted)
		return
	}
	if r.stopped.Load() {
		r.setState(cronus.RunStateAborted)
		return
	}
	r.setState(cronus.RunStateCompleted)
}

// powerCurve sweeps the resolved interval and records a power sample per
// point that settles successfully. Failed points are skipped, not
// retried.
func (r *testRun) powerCurve(ctx context.Context) {
	for _, wl := range powerCurvePoints(r.resolved.Min, r.resolved.Max) {
		if r.stopped.Load() {
			return
		}
		if !r.client.Reachable(r.channel) {
			r.emit(runUpdate{kind: updateConnectionLost})
			sleepCtx(ctx, r.timings.ReconnectPause)
			if !r.client.Reachable(r.channel) {
				continue // give up on this point only
			}
		}
		wl = clampWavelength(wl, r.device)
		success, _ := r.attempt.do(ctx, r.channel, wl)
		if !success {
			continue
		}
		sleepCtx(ctx, r.timings.PowerSettle)
		r.log.Debugw("command_sent", "channel", r.channel, "get", "Power")
		p := r.client.Power(r.channel)
		if p == nil || !p.OK {
			continue
		}
		sample := cronus.PowerSample{Wavelength: wl, Power: p.Power}
		r.samples = append(r.samples, sample)
		r.emit(runUpdate{kind: updateSample, sample: &sample})
	}
}

// powerCurvePoints builds the sweep grid: every step nm from floor(min),
// always including the exact upper bound; intervals narrower than one
// step collapse to their (truncated) midpoint.
func powerCurvePoints(min, max float64) []float64 {
	if max-min < powerCurveStep {
		return []float64{math.Trunc((min + max) / 2)}
	}
	var pts []float64
	for wl := math.Floor(min); wl < max; wl += powerCurveStep {
		pts = append(pts, wl)
	}
	if pts[len(pts)-1] != max {
		pts = append(pts, max)
	}
	return pts
}

func (r *testRun) openFailLog() {
	if r.logDir == "" {
		return
	}
	if err := os.MkdirAll(r.logDir, 0o755); err != nil {
		r.log.Warnw("fail_log_dir_unavailable", "dir", r.logDir, "err", err)
		return
	}
	name := fmt.Sprintf("Ch%d_wavelength_failures_%s.txt", r.channel, r.startedAt.Format("20060102_150405"))
	f, err := os.Create(filepath.Join(r.logDir, name))
	if err != nil {
		r.log.Warnw("fail_log_unavailable", "file", name, "err", err)
		return
	}
	fmt.Fprintf(f, "Cronus Ch%d Wavelength Failures Log\n", r.channel)
	fmt.Fprintf(f, "Test started: %s\n", r.startedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(f, "--------------------------------------------------")
	r.failLog = f
}

func (r *testRun) logFailure(o cronus.AttemptOutcome) {
	if r.failLog == nil {
		return
	}
	fmt.Fprintf(r.failLog, "%s - Failed wavelength: %.1f nm (Duration: %.1fs)\n",
		o.Timestamp.Format("2006-01-02 15:04:05"), o.Wavelength, o.Duration)
}

func (r *testRun) closeFailLog() {
	if r.failLog != nil {
		_ = r.failLog.Close()
	}
}
