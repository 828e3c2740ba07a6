package service

import (
	"context"
	"time"

	"github.com/E3dvis/cronustraining/internal/logger"
)

// stateSuccess is the terminal settle state reported by the device when a
// wavelength move landed.
const stateSuccess = "Success"

// attemptProtocol performs one wavelength-set-and-wait-for-settle
// exchange. Transport failures during polling are reported through
// onConnectionLost and retried after the poll interval; they do not
// consume the poll budget, so a brief outage cannot produce a spurious
// timeout. Only successful polls advance the budget counter.
type attemptProtocol struct {
	client           DeviceClient
	timings          Timings
	log              *logger.Logger
	onConnectionLost func()
}

// do runs a single attempt for an already-clamped wavelength. It returns
// success and the elapsed wall time in seconds, measured from the set
// command regardless of where the attempt ended.
func (p *attemptProtocol) do(ctx context.Context, channel int, wl float64) (bool, float64) {
	start := time.Now()

	p.log.Debugw("command_sent", "channel", channel, "put", "Wavelength", "wavelength", wl)
	if p.client.SetWavelength(channel, wl) == nil {
		p.onConnectionLost()
		return false, time.Since(start).Seconds()
	}

	if !p.waitActivation(ctx, channel) {
		// Never became active; the completion phase is skipped.
		return false, time.Since(start).Seconds()
	}

	return p.waitCompletion(ctx, channel), time.Since(start).Seconds()
}

// waitActivation polls until the device acknowledges it started moving.
func (p *attemptProtocol) waitActivation(ctx context.Context, channel int) bool {
	for polls := 0; polls < p.timings.ActivationPollBudget; {
		if ctx.Err() != nil {
			return false
		}
		p.log.Debugw("command_sent", "channel", channel, "get", "Status")
		st := p.client.ChannelStatus(channel)
		if st == nil {
			p.onConnectionLost()
			if !sleepCtx(ctx, p.timings.ActivationPollInterval) {
				return false
			}
			continue
		}
		if st.IsWavelengthSettingActive {
			return true
		}
		polls++
		if !sleepCtx(ctx, p.timings.ActivationPollInterval) {
			return false
		}
	}
	return false
}

// waitCompletion polls until the active flag clears and reports whether
// the terminal settle state is Success. Budget exhaustion is a failure.
func (p *attemptProtocol) waitCompletion(ctx context.Context, channel int) bool {
	for polls := 0; polls < p.timings.CompletionPollBudget; {
		if ctx.Err() != nil {
			return false
		}
		p.log.Debugw("command_sent", "channel", channel, "get", "Status")
		st := p.client.ChannelStatus(channel)
		if st == nil {
			p.onConnectionLost()
			if !sleepCtx(ctx, p.timings.CompletionPollInterval) {
				return false
			}
			continue
		}
		if !st.IsWavelengthSettingActive {
			return st.WavelengthSettingState == stateSuccess
		}
		polls++
		if !sleepCtx(ctx, p.timings.CompletionPollInterval) {
			return false
		}
	}
	return false
}

// sleepCtx waits d, returning false early if ctx is canceled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
