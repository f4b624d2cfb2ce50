package deriv

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSimulatorFetchSeries(t *testing.T) {
	s := NewSimulator(500, zerolog.Nop())
	series, err := s.FetchSeries(context.Background(), "R_10", 200)
	if err != nil {
		t.Fatalf("FetchSeries: %v", err)
	}
	if len(series.Prices) != 200 {
		t.Errorf("prices = %d, want 200", len(series.Prices))
	}
	if series.Volume != 200 {
		t.Errorf("volume = %f", series.Volume)
	}
	for _, p := range series.Prices {
		if p <= 0 {
			t.Fatalf("non-positive simulated price %f", p)
		}
	}
}

func TestSimulatorTradeSettles(t *testing.T) {
	s := NewSimulator(500, zerolog.Nop())
	s.settleIn = 10 * time.Millisecond

	if err := s.PlaceTrade(context.Background(), "R_10", 2.0, 0.01, 0.015); err != nil {
		t.Fatalf("PlaceTrade: %v", err)
	}

	select {
	case o := <-s.Outcomes():
		if o.InstrumentID != "R_10" || o.Stake != 2.0 {
			t.Errorf("outcome = %+v", o)
		}
		if o.Win && o.ProfitLoss <= 0 {
			t.Error("winning outcome with non-positive pnl")
		}
		if !o.Win && o.ProfitLoss != -2.0 {
			t.Errorf("losing outcome pnl = %f, want -2", o.ProfitLoss)
		}
	case <-time.After(time.Second):
		t.Fatal("contract never settled")
	}
}
