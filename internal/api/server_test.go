package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"decter-engine/internal/confirm"
	"decter-engine/internal/engine"
	"decter-engine/internal/events"
	"decter-engine/internal/market"
	"decter-engine/internal/params"
	"decter-engine/internal/state"
	"decter-engine/internal/store"
)

type fakeEngine struct {
	mu       sync.Mutex
	status   engine.Status
	resumed  int
	started  int
	stopped  int
	analyzed int
	sessions int
}

func (f *fakeEngine) Status() engine.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeEngine) Resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumed++
}

func (f *fakeEngine) StartTrading() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *fakeEngine) StopTrading() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
}

func (f *fakeEngine) TriggerAnalysis() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzed++
}

func (f *fakeEngine) NewSession() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
}

func tradingStatus() engine.Status {
	st := state.New(1000, 100, 0.04)
	st.Phase = state.PhaseTrading
	st.Params = state.ActiveParams{InstrumentID: "R_75", Stake: 2.0, GrowthRate: 0.02, TakeProfit: 0.015}
	return engine.Status{State: st, TradingEnabled: true, Timestamp: time.Now().UTC()}
}

func setupServer(t *testing.T, eng EngineAPI) (*Server, *confirm.Gate, *store.MemoryStore) {
	t.Helper()
	logger := zerolog.Nop()
	gate := confirm.NewGate(confirm.Config{Timeout: 5 * time.Second, Tick: time.Second}, nil, logger)
	mem := store.NewMemoryStore()
	srv := NewServer(ServerConfig{Port: 0, ProductionMode: true}, eng, gate, mem, events.NewEventBus(), logger)
	return srv, gate, mem
}

func serve(srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	eng := &fakeEngine{status: tradingStatus()}
	srv, _, _ := setupServer(t, eng)

	w := serve(srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", resp["status"])
	}
	if resp["persistence"] != "healthy" {
		t.Errorf("persistence = %v, want healthy", resp["persistence"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	eng := &fakeEngine{status: tradingStatus()}
	srv, _, _ := setupServer(t, eng)

	w := serve(srv, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d, want 200", w.Code)
	}

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			State struct {
				Mode  string `json:"mode"`
				Phase string `json:"phase"`
			} `json:"state"`
			TradingEnabled bool `json:"trading_enabled"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if !resp.Success {
		t.Error("expected success=true")
	}
	if resp.Data.State.Mode != "continuous" {
		t.Errorf("mode = %s, want continuous", resp.Data.State.Mode)
	}
	if resp.Data.State.Phase != "trading" {
		t.Errorf("phase = %s, want trading", resp.Data.State.Phase)
	}
	if !resp.Data.TradingEnabled {
		t.Error("trading_enabled should be true")
	}
}

func TestStatusUnavailableBeforeStart(t *testing.T) {
	srv, _, _ := setupServer(t, &fakeEngine{})

	w := serve(srv, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status code = %d, want 503", w.Code)
	}
}

func submitProposal(t *testing.T, gate *confirm.Gate) *params.Proposal {
	t.Helper()
	p := &params.Proposal{
		ID:           "prop-1",
		InstrumentID: "R_10",
		Mode:         state.ModeRecovery,
		Stake:        3.6,
		GrowthRate:   0.01,
		TakeProfit:   0.015,
		Metrics:      market.Metrics{InstrumentID: "R_10", Volatility: 0.002},
		CreatedAt:    time.Now().UTC(),
	}
	if err := gate.Submit(p); err != nil {
		t.Fatalf("submit proposal: %v", err)
	}
	return p
}

func TestGetProposal(t *testing.T) {
	srv, gate, _ := setupServer(t, &fakeEngine{status: tradingStatus()})

	w := serve(srv, http.MethodGet, "/api/proposal", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d with no proposal, want 404", w.Code)
	}

	submitProposal(t, gate)

	w = serve(srv, http.MethodGet, "/api/proposal", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Data struct {
			ID           string `json:"id"`
			InstrumentID string `json:"instrument_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Data.ID != "prop-1" || resp.Data.InstrumentID != "R_10" {
		t.Errorf("unexpected proposal payload: %+v", resp.Data)
	}
}

func TestRespondProposalAccept(t *testing.T) {
	srv, gate, _ := setupServer(t, &fakeEngine{status: tradingStatus()})
	submitProposal(t, gate)

	w := serve(srv, http.MethodPost, "/api/proposal/prop-1/respond", map[string]bool{"accept": true})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}

	select {
	case res := <-gate.Results():
		if res.Decision != confirm.Accepted {
			t.Errorf("decision = %s, want accepted", res.Decision)
		}
		if res.Proposal.ID != "prop-1" {
			t.Errorf("resolved proposal = %s, want prop-1", res.Proposal.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("no resolution delivered")
	}
}

func TestRespondProposalErrors(t *testing.T) {
	srv, gate, _ := setupServer(t, &fakeEngine{status: tradingStatus()})

	// No pending proposal
	w := serve(srv, http.MethodPost, "/api/proposal/prop-1/respond", map[string]bool{"accept": true})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d with no proposal, want 404", w.Code)
	}

	submitProposal(t, gate)

	// Wrong ID
	w = serve(srv, http.MethodPost, "/api/proposal/other/respond", map[string]bool{"accept": true})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d with wrong id, want 404", w.Code)
	}

	// First resolution wins
	w = serve(srv, http.MethodPost, "/api/proposal/prop-1/respond", map[string]bool{"accept": false})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	<-gate.Results()

	// Duplicate resolution
	w = serve(srv, http.MethodPost, "/api/proposal/prop-1/respond", map[string]bool{"accept": true})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d on duplicate, want 409", w.Code)
	}
}

func TestResumeOnlyWhenHalted(t *testing.T) {
	eng := &fakeEngine{status: tradingStatus()}
	srv, _, _ := setupServer(t, eng)

	w := serve(srv, http.MethodPost, "/api/engine/resume", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d while trading, want 409", w.Code)
	}

	halted := tradingStatus()
	halted.State.Phase = state.PhaseEmergencyHalt
	halted.State.HaltReason = "single-trade loss limit"
	eng.mu.Lock()
	eng.status = halted
	eng.mu.Unlock()

	w = serve(srv, http.MethodPost, "/api/engine/resume", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d while halted, want 200", w.Code)
	}

	eng.mu.Lock()
	resumed := eng.resumed
	eng.mu.Unlock()
	if resumed != 1 {
		t.Fatalf("resume calls = %d, want 1", resumed)
	}
}

func TestEngineControls(t *testing.T) {
	eng := &fakeEngine{status: tradingStatus()}
	srv, _, _ := setupServer(t, eng)

	for _, path := range []string{"/api/engine/start", "/api/engine/stop", "/api/engine/analyze", "/api/session/new"} {
		if w := serve(srv, http.MethodPost, path, nil); w.Code != http.StatusOK {
			t.Fatalf("%s status = %d, want 200", path, w.Code)
		}
	}

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if eng.started != 1 || eng.stopped != 1 || eng.analyzed != 1 || eng.sessions != 1 {
		t.Fatalf("control calls = start %d stop %d analyze %d session %d, want 1 each",
			eng.started, eng.stopped, eng.analyzed, eng.sessions)
	}
}

func TestTradeHistoryEndpoint(t *testing.T) {
	srv, _, mem := setupServer(t, &fakeEngine{status: tradingStatus()})

	for i := 0; i < 5; i++ {
		mem.AppendTrade(context.Background(), state.TradeOutcome{
			ContractID:   fmt.Sprintf("c-%d", i),
			InstrumentID: "R_75",
			ProfitLoss:   0.03,
			Win:          true,
			ClosedAt:     time.Now().UTC(),
		})
	}

	w := serve(srv, http.MethodGet, "/api/history/trades?limit=3", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Data struct {
			Count  int                  `json:"count"`
			Trades []state.TradeOutcome `json:"trades"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Data.Count != 3 {
		t.Fatalf("count = %d, want 3", resp.Data.Count)
	}
	// Newest first
	if resp.Data.Trades[0].ContractID != "c-4" {
		t.Errorf("first trade = %s, want c-4", resp.Data.Trades[0].ContractID)
	}
}

func TestModeSwitchHistoryEndpoint(t *testing.T) {
	srv, _, mem := setupServer(t, &fakeEngine{status: tradingStatus()})

	mem.AppendModeSwitch(context.Background(), store.ModeSwitchRecord{
		ID:       "sw-1",
		FromMode: state.ModeContinuous,
		ToMode:   state.ModeRecovery,
		Decision: "accepted",
	})

	w := serve(srv, http.MethodGet, "/api/history/switches", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Data struct {
			Count int `json:"count"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp.Data.Count != 1 {
		t.Fatalf("count = %d, want 1", resp.Data.Count)
	}
}

func TestParseLimitBounds(t *testing.T) {
	srv, _, _ := setupServer(t, &fakeEngine{status: tradingStatus()})

	// Out-of-range limits fall back to the default
	for _, q := range []string{"?limit=0", "?limit=-5", "?limit=9999", "?limit=abc"} {
		w := serve(srv, http.MethodGet, "/api/history/trades"+q, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d for %q, want 200", w.Code, q)
		}
	}
}
