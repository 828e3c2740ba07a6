package service

import (
	"context"
	"sync"
	"time"

	"github.com/E3dvis/cronustraining/internal/logger"
)

// modeUnknown is published whenever the device is unreachable or does not
// report a mode.
const modeUnknown = "Unknown"

// ProbeStatus is one published connectivity reading.
type ProbeStatus struct {
	Connected bool      `json:"connected"`
	Mode      string    `json:"mode"`
	At        time.Time `json:"at"`
}

// ProbeService queries device reachability and operating mode on a fixed
// period for the lifetime of the process, independent of any run. Every
// transport failure is swallowed and mapped to (false, "Unknown");
// nothing escapes its boundary.
type ProbeService struct {
	client   DeviceClient
	interval time.Duration
	log      *logger.Logger

	mu      sync.RWMutex
	latest  ProbeStatus
	updates chan ProbeStatus
}

func NewProbeService(client DeviceClient, interval time.Duration, log *logger.Logger) *ProbeService {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &ProbeService{
		client:   client,
		interval: interval,
		log:      log,
		latest:   ProbeStatus{Mode: modeUnknown},
		updates:  make(chan ProbeStatus, 16),
	}
}

// Run ticks until ctx is canceled. The first reading is taken
// immediately.
func (p *ProbeService) Run(ctx context.Context) {
	p.tick()
	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.tick()
		}
	}
}

// Latest returns the last published status.
func (p *ProbeService) Latest() ProbeStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Updates exposes the per-tick status stream. Readings are dropped, not
// blocked on, when no consumer keeps up.
func (p *ProbeService) Updates() <-chan ProbeStatus {
	return p.updates
}

func (p *ProbeService) tick() {
	status := ProbeStatus{Mode: modeUnknown, At: time.Now()}
	if st := p.client.Status(); st != nil && st.OK {
		status.Connected = true
		if m := p.client.Mode(); m != nil && m.OK {
			status.Mode = m.Mode
		}
	}

	p.mu.Lock()
	was := p.latest.Connected
	p.latest = status
	p.mu.Unlock()

	if was != status.Connected {
		p.log.Infow("device_connectivity", "connected", status.Connected, "mode", status.Mode)
	}

	select {
	case p.updates <- status:
	default:
	}
}
