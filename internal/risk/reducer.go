package risk

import (
	"math"

	"github.com/rs/zerolog"
)

// Config holds the recovery stake-decay schedule.
type Config struct {
	Decay float64 // Multiplicative decay per failed recovery trade
	Floor float64 // Lowest factor the schedule can reach
}

// Reducer shrinks the recovery stake after each failed recovery trade so a
// losing streak cannot compound the drawdown. The factor never drops below
// the floor and resets to one when recovery completes.
type Reducer struct {
	cfg    Config
	logger zerolog.Logger
}

func NewReducer(cfg Config, logger zerolog.Logger) *Reducer {
	if cfg.Decay <= 0 || cfg.Decay >= 1 {
		cfg.Decay = 0.85
	}
	if cfg.Floor <= 0 || cfg.Floor > 1 {
		cfg.Floor = 0.30
	}
	return &Reducer{
		cfg:    cfg,
		logger: logger.With().Str("component", "RiskReducer").Logger(),
	}
}

// Factor returns the stake multiplier after the given number of consecutive
// failed recovery trades: max(floor, decay^failures).
func (r *Reducer) Factor(failures int) float64 {
	if failures <= 0 {
		return 1.0
	}
	f := math.Pow(r.cfg.Decay, float64(failures))
	if f < r.cfg.Floor {
		return r.cfg.Floor
	}
	return f
}

// NextStake applies the decay schedule to the original recovery stake.
func (r *Reducer) NextStake(baseStake float64, failures int) float64 {
	factor := r.Factor(failures)
	stake := baseStake * factor
	r.logger.Debug().
		Int("failures", failures).
		Float64("factor", factor).
		Float64("stake", stake).
		Msg("Recovery stake reduced")
	return stake
}
