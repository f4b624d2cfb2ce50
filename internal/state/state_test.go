package state

import (
	"testing"
	"time"
)

func outcome(pl float64, balance float64) TradeOutcome {
	return TradeOutcome{
		ContractID:   "c1",
		InstrumentID: "R_10",
		Stake:        2.0,
		ProfitLoss:   pl,
		Win:          pl > 0,
		BalanceAfter: balance,
		Mode:         ModeContinuous,
		ClosedAt:     time.Now().UTC(),
	}
}

func TestRecordUpdatesStreaks(t *testing.T) {
	s := New(500, 10, 0.04)

	s.Record(outcome(0.5, 500.5))
	s.Record(outcome(0.4, 500.9))
	if s.ConsecutiveWins != 2 || s.LossStreak != 0 {
		t.Errorf("after two wins: wins=%d lossStreak=%d", s.ConsecutiveWins, s.LossStreak)
	}

	s.Record(outcome(-2.0, 498.9))
	if s.ConsecutiveWins != 0 {
		t.Error("loss should reset consecutive wins")
	}
	if s.LossStreak != 1 {
		t.Errorf("lossStreak = %d, want 1", s.LossStreak)
	}

	s.Record(outcome(0.3, 499.2))
	if s.LossStreak != 0 {
		t.Error("win should reset loss streak")
	}
}

func TestRecordStats(t *testing.T) {
	s := New(1000, 10, 0.04)
	s.Record(outcome(1.0, 1001))
	s.Record(outcome(-2.0, 999))
	s.Record(outcome(-3.0, 996))

	st := s.Stats
	if st.TotalTrades != 3 || st.Wins != 1 || st.Losses != 2 {
		t.Errorf("counts = %d/%d/%d", st.TotalTrades, st.Wins, st.Losses)
	}
	if st.NetPL != -4.0 {
		t.Errorf("NetPL = %f, want -4", st.NetPL)
	}
	if st.GrossLoss != 5.0 {
		t.Errorf("GrossLoss = %f, want 5", st.GrossLoss)
	}
	if st.WorstTrade != -3.0 {
		t.Errorf("WorstTrade = %f", st.WorstTrade)
	}
	if st.LongestLossRun != 2 {
		t.Errorf("LongestLossRun = %d, want 2", st.LongestLossRun)
	}
	if got := st.WinRate(); got < 0.333 || got > 0.334 {
		t.Errorf("WinRate = %f", got)
	}
}

func TestSessionProfitPct(t *testing.T) {
	s := New(1000, 10, 0.04)
	s.Balance = 1045
	if got := s.SessionProfitPct(); got < 0.0449 || got > 0.0451 {
		t.Errorf("SessionProfitPct = %f, want 0.045", got)
	}

	s.SessionStartBalance = 0
	if s.SessionProfitPct() != 0 {
		t.Error("zero start balance should report 0 session profit")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := New(1000, 10, 0.04)
	c := s.Clone()
	c.Balance = 1
	c.Stats.Wins = 99
	if s.Balance == 1 || s.Stats.Wins == 99 {
		t.Error("mutating clone changed original")
	}
}
