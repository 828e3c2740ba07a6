package service

import (
	"context"
	"errors"
	"testing"
	"time"

	cronus "github.com/E3dvis/cronustraining"
)

// captureEventRepo records the parameters List was called with.
type captureEventRepo struct {
	gotFrom    time.Time
	gotTo      time.Time
	gotType    string
	gotChannel int

	events []cronus.RunEvent
	err    error
	calls  int
}

func (f *captureEventRepo) Append(ctx context.Context, e cronus.RunEvent) error { return nil }

func (f *captureEventRepo) List(ctx context.Context, from, to time.Time, typ string, channel int) ([]cronus.RunEvent, error) {
	f.calls++
	f.gotFrom = from
	f.gotTo = to
	f.gotType = typ
	f.gotChannel = channel
	return f.events, f.err
}

func mustTimeIn(loc *time.Location, y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, loc)
}

func Test_normalizeToUTC(t *testing.T) {
	t.Parallel()

	if out := normalizeToUTC(time.Time{}); !out.IsZero() {
		t.Fatalf("zero time must stay zero, got %v", out)
	}

	in := mustTimeIn(time.FixedZone("UTC+3", 3*3600), 2026, time.August, 1, 12, 34, 56)
	out := normalizeToUTC(in)
	exp := time.Date(2026, time.August, 1, 9, 34, 56, 0, time.UTC)
	if out.Location() != time.UTC || !out.Equal(exp) {
		t.Fatalf("got %v (loc=%v), want %v", out, out.Location(), exp)
	}
}

func Test_normalizeAndValidateFilter(t *testing.T) {
	t.Parallel()

	// inverted range is rejected
	_, err := normalizeAndValidateFilter(LogFilter{
		From: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, errInvalidTimeRange) {
		t.Fatalf("expected errInvalidTimeRange, got %v", err)
	}

	// timezone and type normalization
	fromLocal := mustTimeIn(time.FixedZone("UTC+2", 2*3600), 2026, time.September, 10, 10, 0, 0)
	got, err := normalizeAndValidateFilter(LogFilter{
		From:    fromLocal,
		Type:    " connection_lost ",
		Channel: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantFrom := time.Date(2026, time.September, 10, 8, 0, 0, 0, time.UTC)
	if !got.From.Equal(wantFrom) {
		t.Fatalf("from: got %v, want %v", got.From, wantFrom)
	}
	if got.Type != "CONNECTION_LOST" {
		t.Fatalf("type: got %q", got.Type)
	}
	if got.Channel != 1 {
		t.Fatalf("channel: got %d", got.Channel)
	}
}

func TestEventLogService_List_DelegatesNormalizedParams(t *testing.T) {
	t.Parallel()

	frepo := &captureEventRepo{
		events: []cronus.RunEvent{{EventID: "1"}},
	}
	svc := NewEventLogService(frepo)

	fromLocal := mustTimeIn(time.FixedZone("UTC+5", 5*3600), 2026, time.October, 1, 10, 0, 0)
	toLocal := mustTimeIn(time.FixedZone("UTC-2", -2*3600), 2026, time.October, 1, 12, 30, 0)

	out, err := svc.List(context.Background(), LogFilter{
		From:    fromLocal,
		To:      toLocal,
		Type:    "  run_finished ",
		Channel: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].EventID != "1" {
		t.Fatalf("unexpected events: %+v", out)
	}
	if frepo.calls != 1 {
		t.Fatalf("repo List should be called once, got %d", frepo.calls)
	}

	wantFrom := time.Date(2026, time.October, 1, 5, 0, 0, 0, time.UTC)
	wantTo := time.Date(2026, time.October, 1, 14, 30, 0, 0, time.UTC)
	if !frepo.gotFrom.Equal(wantFrom) {
		t.Fatalf("repo gotFrom=%v; want %v", frepo.gotFrom, wantFrom)
	}
	if !frepo.gotTo.Equal(wantTo) {
		t.Fatalf("repo gotTo=%v; want %v", frepo.gotTo, wantTo)
	}
	if frepo.gotType != "RUN_FINISHED" || frepo.gotChannel != 2 {
		t.Fatalf("repo got type=%q channel=%d", frepo.gotType, frepo.gotChannel)
	}
}

func TestEventLogService_List_ValidationError(t *testing.T) {
	t.Parallel()

	frepo := &captureEventRepo{}
	svc := NewEventLogService(frepo)

	_, err := svc.List(context.Background(), LogFilter{
		From: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC),
	})
	if !errors.Is(err, errInvalidTimeRange) {
		t.Fatalf("expected errInvalidTimeRange; got %v", err)
	}
	if frepo.calls != 0 {
		t.Fatalf("repo should not be called on validation error, calls=%d", frepo.calls)
	}
}

func TestEventLogService_List_RepoErrorPropagation(t *testing.T) {
	t.Parallel()

	frepo := &captureEventRepo{err: errors.New("db down")}
	svc := NewEventLogService(frepo)

	_, err := svc.List(context.Background(), LogFilter{})
	if !errors.Is(err, frepo.err) {
		t.Fatalf("expected repo error to propagate; got %v", err)
	}
}

func TestEventLogService_List_ZeroBoundsPassedAsZero(t *testing.T) {
	t.Parallel()

	frepo := &captureEventRepo{}
	svc := NewEventLogService(frepo)

	_, err := svc.List(context.Background(), LogFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !frepo.gotFrom.IsZero() || !frepo.gotTo.IsZero() || frepo.gotType != "" || frepo.gotChannel != 0 {
		t.Fatalf("expected zero filter; got from=%v to=%v type=%q channel=%d",
			frepo.gotFrom, frepo.gotTo, frepo.gotType, frepo.gotChannel)
	}
}
