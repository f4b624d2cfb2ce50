package params

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"decter-engine/internal/forecast"
	"decter-engine/internal/market"
	"decter-engine/internal/state"
)

// Deriv accumulator contracts only accept these growth rates.
var allowedGrowthRates = []float64{0.01, 0.02, 0.03, 0.04, 0.05}

// minStake is the smallest stake the broker accepts.
const minStake = 0.35

// Frequency is the suggested trading tempo for the proposed parameters.
type Frequency string

const (
	FrequencyLow    Frequency = "low"
	FrequencyMedium Frequency = "medium"
	FrequencyHigh   Frequency = "high"
)

// Proposal is a candidate parameter set awaiting operator confirmation.
type Proposal struct {
	ID           string             `json:"id"`
	InstrumentID string             `json:"instrument_id"`
	Mode         state.Mode         `json:"mode"`
	Stake        float64            `json:"stake"`
	GrowthRate   float64            `json:"growth_rate"`
	TakeProfit   float64            `json:"take_profit"`
	Frequency    Frequency          `json:"frequency"`
	Rationale    string             `json:"rationale"`
	Metrics      market.Metrics     `json:"metrics"`
	Forecast     *forecast.Forecast `json:"forecast,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	ExpiresAt    time.Time          `json:"expires_at,omitempty"`
}

// Params flattens the proposal into the engine's active parameter set.
func (p *Proposal) Params() state.ActiveParams {
	return state.ActiveParams{
		InstrumentID: p.InstrumentID,
		Stake:        p.Stake,
		GrowthRate:   p.GrowthRate,
		TakeProfit:   p.TakeProfit,
	}
}

// Config holds optimizer tuning.
type Config struct {
	BaseGrowthRate     float64
	BaseTakeProfit     float64
	GrowthExponent     float64
	ProfitExponent     float64
	AlphaMin           float64
	AlphaMax           float64
	SmallBalanceMax    float64
	MediumBalanceMax   float64
	SmallStake         float64
	MediumStake        float64
	LargeStake         float64
	HighVolThreshold   float64 // Fraction above the reference volatility
	LowVolThreshold    float64 // Fraction below the reference volatility
	RecoveryMultiplier float64
	StakeCapFraction   float64
}

// Optimizer derives accumulator parameters from market metrics, account
// balance, and the engine mode.
type Optimizer struct {
	cfg    Config
	logger zerolog.Logger
}

func NewOptimizer(cfg Config, logger zerolog.Logger) *Optimizer {
	return &Optimizer{
		cfg:    cfg,
		logger: logger.With().Str("component", "ParamOptimizer").Logger(),
	}
}

// Optimize builds a proposal for the given instrument. sigmaRef anchors the
// volatility scaling; a zero sigmaRef falls back to the instrument's own
// volatility so the first session behaves neutrally.
func (o *Optimizer) Optimize(sigmaRef float64, m market.Metrics, balance float64, mode state.Mode) *Proposal {
	if sigmaRef <= 0 {
		sigmaRef = m.Volatility
	}

	// Calmer instruments tolerate faster compounding. Each scaling factor
	// is clamped after exponentiation so growth and take profit stay within
	// the same [AlphaMin, AlphaMax] band.
	ratio := sigmaRef / m.Volatility
	alphaGrowth := clamp(math.Pow(ratio, o.cfg.GrowthExponent), o.cfg.AlphaMin, o.cfg.AlphaMax)
	alphaProfit := clamp(math.Pow(ratio, o.cfg.ProfitExponent), o.cfg.AlphaMin, o.cfg.AlphaMax)

	growth := snapGrowthRate(o.cfg.BaseGrowthRate * alphaGrowth)
	takeProfit := o.cfg.BaseTakeProfit * alphaProfit

	stake := o.stakeTier(balance)

	relVol := 1.0
	if sigmaRef > 0 {
		relVol = m.Volatility / sigmaRef
	}
	freq := FrequencyMedium
	switch {
	case relVol >= 1+o.cfg.HighVolThreshold:
		stake *= 0.5
		takeProfit *= 1.2
		freq = FrequencyLow
	case relVol <= 1-o.cfg.LowVolThreshold:
		stake *= 1.25
		takeProfit *= 0.9
		freq = FrequencyHigh
	}

	if mode == state.ModeRecovery {
		stake *= o.cfg.RecoveryMultiplier
	}

	cap := balance * o.cfg.StakeCapFraction
	if cap > 0 && stake > cap {
		stake = cap
	}
	if stake < minStake {
		stake = minStake
	}
	stake = math.Round(stake*100) / 100

	p := &Proposal{
		ID:           uuid.NewString(),
		InstrumentID: m.InstrumentID,
		Mode:         mode,
		Stake:        stake,
		GrowthRate:   growth,
		TakeProfit:   takeProfit,
		Frequency:    freq,
		Metrics:      m,
		CreatedAt:    time.Now().UTC(),
	}
	p.Rationale = o.rationale(p, relVol, alphaGrowth)

	o.logger.Info().
		Str("proposal_id", p.ID).
		Str("instrument", p.InstrumentID).
		Str("mode", string(mode)).
		Float64("stake", p.Stake).
		Float64("growth_rate", p.GrowthRate).
		Float64("take_profit", p.TakeProfit).
		Msg("Parameters optimized")

	return p
}

func (o *Optimizer) stakeTier(balance float64) float64 {
	switch {
	case balance < o.cfg.SmallBalanceMax:
		return o.cfg.SmallStake
	case balance < o.cfg.MediumBalanceMax:
		return o.cfg.MediumStake
	default:
		return o.cfg.LargeStake
	}
}

func (o *Optimizer) rationale(p *Proposal, relVol, alpha float64) string {
	tempo := "in line with"
	if relVol >= 1+o.cfg.HighVolThreshold {
		tempo = "well above"
	} else if relVol <= 1-o.cfg.LowVolThreshold {
		tempo = "below"
	}
	return fmt.Sprintf(
		"%s volatility %.4f is %s the session reference (score %.3f, %d samples); alpha %.2f gives %.0f%% growth, %.2f%% take profit, stake %.2f at %s frequency",
		p.InstrumentID, p.Metrics.Volatility, tempo, p.Metrics.RiskReturnScore,
		p.Metrics.SampleSize, alpha, p.GrowthRate*100, p.TakeProfit*100, p.Stake, p.Frequency)
}

// snapGrowthRate rounds to the nearest broker-accepted growth rate.
func snapGrowthRate(g float64) float64 {
	best := allowedGrowthRates[0]
	bestDist := math.Abs(g - best)
	for _, r := range allowedGrowthRates[1:] {
		if d := math.Abs(g - r); d < bestDist {
			best, bestDist = r, d
		}
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
