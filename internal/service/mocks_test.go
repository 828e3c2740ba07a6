package service

import (
	"context"
	"sync"
	"testing"
	"time"

	cronus "github.com/E3dvis/cronustraining"
	"github.com/E3dvis/cronustraining/internal/device"
)

// fakeDevice simulates the instrument. An attempt is driven by its poll
// counter: activationPolls inactive readings, then settlePolls active
// readings, then a terminal reading carrying settleState. SetWavelength
// rearms the counter.
type fakeDevice struct {
	mu sync.Mutex

	statusScript []*device.StatusResponse // consumed by Status; last entry repeats
	mode         string                   // "" makes Mode return nil

	unreachable  bool
	reachableSeq []bool // consumed first, then !unreachable

	devRange *cronus.DeviceRange

	setFails        bool
	statusNils      int // leading transport failures per attempt
	activationPolls int
	settlePolls     int
	settleState     string

	power   float64
	powerOK bool
	offOK   bool

	polls          int
	setWavelengths []float64
	offCalls       int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		devRange:    &cronus.DeviceRange{Min: 690, Max: 1040},
		settlePolls: 1,
		settleState: stateSuccess,
		powerOK:     true,
		offOK:       true,
	}
}

func (f *fakeDevice) Status() *device.StatusResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statusScript) == 0 {
		return &device.StatusResponse{OK: true}
	}
	st := f.statusScript[0]
	if len(f.statusScript) > 1 {
		f.statusScript = f.statusScript[1:]
	}
	return st
}

func (f *fakeDevice) Mode() *device.ModeResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode == "" {
		return nil
	}
	return &device.ModeResponse{OK: true, Mode: f.mode}
}

func (f *fakeDevice) ChannelStatus(channel int) *device.ChannelStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusNils > 0 {
		f.statusNils--
		return nil
	}
	p := f.polls
	f.polls++
	switch {
	case p < f.activationPolls:
		return &device.ChannelStatus{OK: true}
	case p < f.activationPolls+f.settlePolls:
		return &device.ChannelStatus{OK: true, IsWavelengthSettingActive: true}
	default:
		return &device.ChannelStatus{OK: true, WavelengthSettingState: f.settleState}
	}
}

func (f *fakeDevice) Reachable(channel int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.reachableSeq) > 0 {
		v := f.reachableSeq[0]
		f.reachableSeq = f.reachableSeq[1:]
		return v
	}
	return !f.unreachable
}

func (f *fakeDevice) Range(channel int) *cronus.DeviceRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devRange
}

func (f *fakeDevice) SetWavelength(channel int, wl float64) *device.SetResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setFails {
		return nil
	}
	f.setWavelengths = append(f.setWavelengths, wl)
	f.polls = 0
	return &device.SetResult{OK: true}
}

func (f *fakeDevice) Power(channel int) *device.PowerReading {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.powerOK {
		return nil
	}
	return &device.PowerReading{OK: true, Power: f.power}
}

func (f *fakeDevice) Off() *device.OffResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offCalls++
	return &device.OffResult{OK: f.offOK}
}

func (f *fakeDevice) sentWavelengths() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]float64, len(f.setWavelengths))
	copy(out, f.setWavelengths)
	return out
}

type fakeEventRepo struct {
	mu        sync.Mutex
	appendErr error
	events    []cronus.RunEvent
	listErr   error
}

func (f *fakeEventRepo) Append(ctx context.Context, e cronus.RunEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.appendErr
}

func (f *fakeEventRepo) List(ctx context.Context, from, to time.Time, typ string, channel int) ([]cronus.RunEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []cronus.RunEvent
	for _, e := range f.events {
		if !from.IsZero() && e.OccurredAt.Before(from) {
			continue
		}
		if !to.IsZero() && e.OccurredAt.After(to) {
			continue
		}
		if typ != "" && e.Type != typ {
			continue
		}
		if channel != 0 && e.Channel != channel {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeEventRepo) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeRunRepo struct {
	mu        sync.Mutex
	insertErr error
	records   []cronus.RunRecord
	inserted  chan cronus.RunRecord
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{inserted: make(chan cronus.RunRecord, 8)}
}

func (f *fakeRunRepo) Insert(ctx context.Context, r cronus.RunRecord) error {
	f.mu.Lock()
	f.records = append(f.records, r)
	f.mu.Unlock()
	select {
	case f.inserted <- r:
	default:
	}
	return f.insertErr
}

func (f *fakeRunRepo) Latest(ctx context.Context, channel int) (cronus.RunRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].Channel == channel {
			return f.records[i], nil
		}
	}
	return cronus.RunRecord{}, nil
}

// waitForRecord blocks until the repo sees an Insert or the deadline
// passes.
func (f *fakeRunRepo) waitForRecord(t *testing.T, timeout time.Duration) cronus.RunRecord {
	t.Helper()
	select {
	case r := <-f.inserted:
		return r
	case <-time.After(timeout):
		t.Fatalf("no run record persisted within %v", timeout)
		return cronus.RunRecord{}
	}
}

// testTimings shrinks every interval so engine tests finish in
// milliseconds.
func testTimings() Timings {
	return Timings{
		ActivationPollInterval: time.Millisecond,
		ActivationPollBudget:   10,
		CompletionPollInterval: time.Millisecond,
		CompletionPollBudget:   120,
		ReconnectPause:         time.Millisecond,
		CycleMargin:            0,
		PowerSettle:            time.Millisecond,
		ProbeInterval:          time.Millisecond,
		StopJoinWait:           100 * time.Millisecond,
	}
}
