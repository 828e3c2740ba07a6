package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	cronus "github.com/E3dvis/cronustraining"
	"github.com/E3dvis/cronustraining/internal/service"
)

func TestLogsHandler_ListAndValidation(t *testing.T) {
	auth := &mockAuth{parseID: 99}
	now := time.Now().UTC().Truncate(time.Second)
	events := []cronus.RunEvent{
		{EventID: "e1", OccurredAt: now, Channel: 1, Type: cronus.EventRunStarted, Description: "run started"},
		{EventID: "e2", OccurredAt: now.Add(1 * time.Second), Channel: 1, Type: cronus.EventConnectionLost, Description: "probe failed"},
	}
	logs := &mockEventLog{resp: events}
	s := &service.Service{
		Authorization: auth,
		EventLog:      logs,
	}
	r := newTestRouter(s)

	// Missing/invalid 'from' → 400
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/logs?from=notatime", nil)
	addAuth(req, "valid")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid 'from', got %d", w.Code)
	}

	// Invalid channel → 400
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/logs?channel=two", nil)
	addAuth(req, "valid")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 invalid channel, got %d", w.Code)
	}

	// Valid range, type and channel passed through to the service
	w = httptest.NewRecorder()
	q := "/api/v1/logs?from=" + now.Format(time.RFC3339) + "&to=" + now.Add(2*time.Second).Format(time.RFC3339) + "&type=CONNECTION_LOST&channel=1"
	req = httptest.NewRequest(http.MethodGet, q, nil)
	addAuth(req, "valid")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count  int               `json:"count"`
		Events []cronus.RunEvent `json:"events"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || len(out.Events) != 2 {
		t.Fatalf("unexpected response: %+v", out)
	}
	if logs.lastType != "CONNECTION_LOST" || logs.lastChannel != 1 {
		t.Fatalf("filter not passed: type=%q channel=%d", logs.lastType, logs.lastChannel)
	}

	// Date-only 'to' is inclusive of the whole day
	w = httptest.NewRecorder()
	day := now.Format("2006-01-02")
	req = httptest.NewRequest(http.MethodGet, "/api/v1/logs?to="+day, nil)
	addAuth(req, "valid")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("logs status=%d, body=%s", w.Code, w.Body.String())
	}
	endOfDay := logs.lastTo
	if endOfDay.Hour() != 23 || endOfDay.Minute() != 59 {
		t.Fatalf("date-only 'to' not extended to end of day: %v", endOfDay)
	}
}
