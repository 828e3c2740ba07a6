package handlers

import (
	"context"
	"net/http"
	"time"

	cronus "github.com/E3dvis/cronustraining"
	"github.com/E3dvis/cronustraining/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

type mockTestRuns struct {
	startSnap cronus.RunSnapshot
	startErr  error
	stopErr   error
	snap      cronus.RunSnapshot
	outcomes  []cronus.AttemptOutcome
	samples   []cronus.PowerSample
	resultErr error

	startCalled   int
	stopCalled    int
	stopAllCalled int
	lastChannel   int
	lastOverrides service.RunOverrides
}

func (m *mockTestRuns) Start(channel int, overrides service.RunOverrides) (cronus.RunSnapshot, error) {
	m.startCalled++
	m.lastChannel = channel
	m.lastOverrides = overrides
	return m.startSnap, m.startErr
}
func (m *mockTestRuns) Stop(channel int) error {
	m.stopCalled++
	m.lastChannel = channel
	return m.stopErr
}
func (m *mockTestRuns) Snapshot(channel int) cronus.RunSnapshot {
	m.lastChannel = channel
	return m.snap
}
func (m *mockTestRuns) Results(channel int) ([]cronus.AttemptOutcome, []cronus.PowerSample, error) {
	m.lastChannel = channel
	return m.outcomes, m.samples, m.resultErr
}
func (m *mockTestRuns) StopAll() { m.stopAllCalled++ }

type mockConnectivity struct {
	latest service.ProbeStatus
	ch     chan service.ProbeStatus
}

func (m *mockConnectivity) Run(ctx context.Context) { <-ctx.Done() }

func (m *mockConnectivity) Latest() service.ProbeStatus { return m.latest }

func (m *mockConnectivity) Updates() <-chan service.ProbeStatus { return m.ch }

type mockDevice struct {
	rng       *cronus.DeviceRange
	offResult bool
	offCalled int
}

func (m *mockDevice) Range(channel int) *cronus.DeviceRange { return m.rng }
func (m *mockDevice) Off() bool {
	m.offCalled++
	return m.offResult
}

type mockEventLog struct {
	resp        []cronus.RunEvent
	err         error
	lastFrom    time.Time
	lastTo      time.Time
	lastType    string
	lastChannel int
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]cronus.RunEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	m.lastChannel = f.Channel
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
