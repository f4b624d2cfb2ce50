package forecast

import (
	"errors"
	"math"
	"time"

	"decter-engine/internal/market"
)

// ErrNothingToRecover is returned when the requested loss is not positive.
var ErrNothingToRecover = errors.New("nothing to recover")

// RiskLevel buckets the success probability into operator-facing bands.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskVeryHigh RiskLevel = "VERY_HIGH"
)

// Forecast is the projected path out of a drawdown under proposed parameters.
type Forecast struct {
	LossToRecover      float64       `json:"loss_to_recover"`
	RecoveryTarget     float64       `json:"recovery_target"` // Loss plus safety buffer
	EstimatedTradesMin int           `json:"estimated_trades_min"`
	EstimatedTradesMax int           `json:"estimated_trades_max"`
	RequiredWinRate    float64       `json:"required_win_rate"`
	SuccessProbability float64       `json:"success_probability"`
	TimeEstimate       time.Duration `json:"time_estimate"`
	RiskLevel          RiskLevel     `json:"risk_level"`
}

// Config holds forecaster tuning.
type Config struct {
	Buffer       float64       // Safety margin applied to the loss (0.20 = 20%)
	TradeCadence time.Duration // Assumed wall time per trade
	Steepness    float64       // Logistic slope
	Pivot        float64       // Logistic midpoint on the adjusted win-rate axis
	VolWeight    float64       // How strongly volatility penalises the probability
	VolNorm      float64       // Volatility mapped to a penalty of VolWeight
}

// Forecaster projects recovery odds from market metrics and trade parameters.
type Forecaster struct {
	cfg Config
}

func New(cfg Config) *Forecaster {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 0.20
	}
	if cfg.TradeCadence <= 0 {
		cfg.TradeCadence = 30 * time.Second
	}
	if cfg.Steepness <= 0 {
		cfg.Steepness = 60
	}
	if cfg.Pivot <= 0 {
		cfg.Pivot = 1.01
	}
	if cfg.VolWeight <= 0 {
		cfg.VolWeight = 0.25
	}
	if cfg.VolNorm <= 0 {
		cfg.VolNorm = 0.5
	}
	return &Forecaster{cfg: cfg}
}

// Forecast projects the trades, time, and odds needed to win back loss
// using the given stake and take-profit on the analyzed instrument.
func (f *Forecaster) Forecast(loss float64, m market.Metrics, stake, takeProfit float64) (*Forecast, error) {
	if loss <= 0 {
		return nil, ErrNothingToRecover
	}
	if stake <= 0 || takeProfit <= 0 {
		return nil, errors.New("stake and take profit must be positive")
	}

	target := loss * (1 + f.cfg.Buffer)
	profitPerWin := stake * takeProfit

	tradesMin := int(math.Ceil(target / profitPerWin))
	if tradesMin < 1 {
		tradesMin = 1
	}

	sigmaNorm := m.Volatility / f.cfg.VolNorm
	if sigmaNorm > 1 {
		sigmaNorm = 1
	}

	// The max assumes interleaved losses; rougher markets stretch it further.
	tradesMax := int(math.Ceil(float64(tradesMin) * (1.5 + sigmaNorm)))
	if tradesMax < tradesMin {
		tradesMax = tradesMin
	}

	// Break-even win rate for a contract risking the stake to win stake*tp.
	required := 1 / (1 + takeProfit)

	prob := f.successProbability(required, sigmaNorm)

	est := time.Duration(tradesMax) * f.cfg.TradeCadence
	est = ceilToMinute(est)

	return &Forecast{
		LossToRecover:      loss,
		RecoveryTarget:     target,
		EstimatedTradesMin: tradesMin,
		EstimatedTradesMax: tradesMax,
		RequiredWinRate:    required,
		SuccessProbability: prob,
		TimeEstimate:       est,
		RiskLevel:          classify(prob),
	}, nil
}

// successProbability is monotone decreasing in both the required win rate
// and normalized volatility, clamped to [0.05, 0.95].
func (f *Forecaster) successProbability(required, sigmaNorm float64) float64 {
	x := required + f.cfg.VolWeight*sigmaNorm - f.cfg.Pivot
	p := 1 / (1 + math.Exp(f.cfg.Steepness*x))
	if p < 0.05 {
		return 0.05
	}
	if p > 0.95 {
		return 0.95
	}
	return p
}

func classify(p float64) RiskLevel {
	pct := p * 100
	switch {
	case pct >= 80:
		return RiskLow
	case pct >= 60:
		return RiskMedium
	case pct >= 40:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

func ceilToMinute(d time.Duration) time.Duration {
	if d%time.Minute == 0 {
		return d
	}
	return (d/time.Minute + 1) * time.Minute
}
