package state

import "time"

// Mode is the top-level trading posture of the engine.
type Mode string

const (
	ModeContinuous Mode = "continuous"
	ModeRecovery   Mode = "recovery"
)

// Phase tracks where the engine sits inside the decision cycle.
type Phase string

const (
	PhaseIdle                 Phase = "idle"
	PhaseTrading              Phase = "trading"
	PhaseAnalyzingDrawdown    Phase = "analyzing_drawdown"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
	PhaseEmergencyHalt        Phase = "emergency_halt"
)

// ActiveParams are the accumulator parameters currently applied to live trades.
// GrowthRate and TakeProfit are fractions (0.01 = 1%), Stake is in account currency.
type ActiveParams struct {
	InstrumentID string  `json:"instrument_id"`
	Stake        float64 `json:"stake"`
	GrowthRate   float64 `json:"growth_rate"`
	TakeProfit   float64 `json:"take_profit"`
}

// TradeOutcome is the settled result of a single accumulator contract.
type TradeOutcome struct {
	ContractID   string    `json:"contract_id"`
	InstrumentID string    `json:"instrument_id"`
	Stake        float64   `json:"stake"`
	ProfitLoss   float64   `json:"profit_loss"`
	Win          bool      `json:"win"`
	BalanceAfter float64   `json:"balance_after"`
	Mode         Mode      `json:"mode"`
	ClosedAt     time.Time `json:"closed_at"`
}

// Stats are running session statistics since the last session reset.
type Stats struct {
	TotalTrades    int     `json:"total_trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	NetPL          float64 `json:"net_pl"`
	GrossProfit    float64 `json:"gross_profit"`
	GrossLoss      float64 `json:"gross_loss"`
	BestTrade      float64 `json:"best_trade"`
	WorstTrade     float64 `json:"worst_trade"`
	LongestWinRun  int     `json:"longest_win_run"`
	LongestLossRun int     `json:"longest_loss_run"`
}

// WinRate returns wins over total trades, 0 when no trades have settled.
func (s Stats) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.TotalTrades)
}

// EngineState is the full durable state of the decision engine. A single
// instance is owned by the engine loop; everything else sees copies.
type EngineState struct {
	Mode  Mode  `json:"mode"`
	Phase Phase `json:"phase"`

	Params ActiveParams `json:"params"`

	LossStreak      int     `json:"loss_streak"`
	ConsecutiveWins int     `json:"consecutive_wins"`
	CumulativeLoss  float64 `json:"cumulative_loss"`

	Balance             float64 `json:"balance"`
	SessionStartBalance float64 `json:"session_start_balance"`
	DailyProfitTarget   float64 `json:"daily_profit_target"`

	// SigmaReference anchors parameter scaling; set from the first
	// analyzed instrument and kept for the life of the session.
	SigmaReference float64 `json:"sigma_reference"`

	RecoveryFailures   int     `json:"recovery_failures"`
	RecoveryRiskFactor float64 `json:"recovery_risk_factor"`
	RecoveryBaseStake  float64 `json:"recovery_base_stake"`

	// PreRecoveryParams are the continuous-mode parameters saved when
	// recovery begins, restored once the drawdown is recovered.
	PreRecoveryParams ActiveParams `json:"pre_recovery_params"`

	// DrawdownLimit is the cumulative-loss threshold that triggers
	// drawdown analysis. Contingency handling can raise it temporarily.
	DrawdownLimit float64 `json:"drawdown_limit"`

	TotalModeSwitches int       `json:"total_mode_switches"`
	HaltReason        string    `json:"halt_reason,omitempty"`
	Stats             Stats     `json:"stats"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// New returns a fresh continuous-mode state ready for a new session.
func New(balance, drawdownLimit, dailyTarget float64) *EngineState {
	return &EngineState{
		Mode:                ModeContinuous,
		Phase:               PhaseIdle,
		Balance:             balance,
		SessionStartBalance: balance,
		DailyProfitTarget:   dailyTarget,
		RecoveryRiskFactor:  1.0,
		DrawdownLimit:       drawdownLimit,
		UpdatedAt:           time.Now().UTC(),
	}
}

// Clone returns a deep copy safe to hand to other goroutines.
func (s *EngineState) Clone() *EngineState {
	c := *s
	return &c
}

// SessionProfitPct is the session gain relative to the starting balance,
// expressed as a fraction (0.03 = 3%).
func (s *EngineState) SessionProfitPct() float64 {
	if s.SessionStartBalance <= 0 {
		return 0
	}
	return (s.Balance - s.SessionStartBalance) / s.SessionStartBalance
}

// Record folds a settled trade into the running statistics and streak
// counters. Drawdown accumulation and mode decisions stay with the engine.
func (s *EngineState) Record(o TradeOutcome) {
	s.Balance = o.BalanceAfter
	s.Stats.TotalTrades++
	s.Stats.NetPL += o.ProfitLoss
	if o.Win {
		s.Stats.Wins++
		s.Stats.GrossProfit += o.ProfitLoss
		s.ConsecutiveWins++
		s.LossStreak = 0
		if s.ConsecutiveWins > s.Stats.LongestWinRun {
			s.Stats.LongestWinRun = s.ConsecutiveWins
		}
		if o.ProfitLoss > s.Stats.BestTrade {
			s.Stats.BestTrade = o.ProfitLoss
		}
	} else {
		s.Stats.Losses++
		s.Stats.GrossLoss += -o.ProfitLoss
		s.LossStreak++
		s.ConsecutiveWins = 0
		if s.LossStreak > s.Stats.LongestLossRun {
			s.Stats.LongestLossRun = s.LossStreak
		}
		if o.ProfitLoss < s.Stats.WorstTrade {
			s.Stats.WorstTrade = o.ProfitLoss
		}
	}
	s.UpdatedAt = o.ClosedAt
}
