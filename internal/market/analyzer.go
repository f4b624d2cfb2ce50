package market

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoQualifiedInstrument is returned when no candidate produced usable
// metrics, either because every fetch failed or every series was filtered out.
var ErrNoQualifiedInstrument = errors.New("no qualified instrument")

// ErrInsufficientData marks a series too short to compute stable metrics.
var ErrInsufficientData = errors.New("insufficient data")

// PriceSeries is a lookback window of ticks for one instrument.
type PriceSeries struct {
	InstrumentID string
	Prices       []float64
	Volume       float64
	FetchedAt    time.Time
}

// DataProvider fetches recent tick history for an instrument.
type DataProvider interface {
	FetchSeries(ctx context.Context, instrumentID string, lookback int) (*PriceSeries, error)
}

// Metrics are the per-instrument analysis results used for ranking.
type Metrics struct {
	InstrumentID    string    `json:"instrument_id"`
	Volatility      float64   `json:"volatility"`
	MeanReturn      float64   `json:"mean_return"`
	RiskReturnScore float64   `json:"risk_return_score"`
	SampleSize      int       `json:"sample_size"`
	LiquidityVolume float64   `json:"liquidity_volume"`
	ComputedAt      time.Time `json:"computed_at"`
}

// Config holds analyzer tuning.
type Config struct {
	LookbackSamples    int
	FetchTimeout       time.Duration
	Workers            int
	MinSampleSize      int
	MinLiquidityVolume float64
}

// Analyzer ranks candidate instruments by risk-adjusted return. Fetches
// fan out across a bounded worker pool; one slow or failing instrument
// never blocks the rest.
type Analyzer struct {
	provider DataProvider
	cfg      Config
	logger   zerolog.Logger

	mu          sync.RWMutex
	lastRanking []Metrics
	lastRunAt   time.Time
}

func NewAnalyzer(provider DataProvider, cfg Config, logger zerolog.Logger) *Analyzer {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &Analyzer{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With().Str("component", "MarketAnalyzer").Logger(),
	}
}

// Analyze fetches and scores every candidate, returning metrics sorted by
// risk-return score descending (liquidity breaks ties). Candidates whose
// fetch fails or whose series does not qualify are skipped; if none
// qualify the error wraps ErrNoQualifiedInstrument.
func (a *Analyzer) Analyze(ctx context.Context, candidates []string) ([]Metrics, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: empty candidate list", ErrNoQualifiedInstrument)
	}

	start := time.Now()
	a.logger.Info().Int("candidates", len(candidates)).Msg("Starting market analysis")

	type result struct {
		metrics Metrics
		err     error
		id      string
	}

	jobs := make(chan string, len(candidates))
	results := make(chan result, len(candidates))

	workers := a.cfg.Workers
	if workers > len(candidates) {
		workers = len(candidates)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				m, err := a.analyzeOne(ctx, id)
				results <- result{metrics: m, err: err, id: id}
			}
		}()
	}

	for _, id := range candidates {
		jobs <- id
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var ranked []Metrics
	failed := 0
	for r := range results {
		if r.err != nil {
			failed++
			a.logger.Warn().Str("instrument", r.id).Err(r.err).Msg("Instrument skipped")
			continue
		}
		ranked = append(ranked, r.metrics)
	}

	if len(ranked) == 0 {
		a.logger.Error().Int("failed", failed).Msg("Market analysis produced no qualified instruments")
		return nil, fmt.Errorf("%w: %d candidates failed or filtered", ErrNoQualifiedInstrument, failed)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].RiskReturnScore != ranked[j].RiskReturnScore {
			return ranked[i].RiskReturnScore > ranked[j].RiskReturnScore
		}
		return ranked[i].LiquidityVolume > ranked[j].LiquidityVolume
	})

	a.mu.Lock()
	a.lastRanking = ranked
	a.lastRunAt = time.Now()
	a.mu.Unlock()

	a.logger.Info().
		Int("qualified", len(ranked)).
		Int("failed", failed).
		Str("top", ranked[0].InstrumentID).
		Dur("elapsed", time.Since(start)).
		Msg("Market analysis complete")

	return ranked, nil
}

func (a *Analyzer) analyzeOne(ctx context.Context, instrumentID string) (Metrics, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.FetchTimeout)
	defer cancel()

	series, err := a.provider.FetchSeries(fetchCtx, instrumentID, a.cfg.LookbackSamples)
	if err != nil {
		return Metrics{}, fmt.Errorf("fetch %s: %w", instrumentID, err)
	}

	return a.compute(series)
}

func (a *Analyzer) compute(series *PriceSeries) (Metrics, error) {
	if len(series.Prices) < a.cfg.MinSampleSize || len(series.Prices) < 2 {
		return Metrics{}, fmt.Errorf("%w: %s has %d samples, need %d",
			ErrInsufficientData, series.InstrumentID, len(series.Prices), a.cfg.MinSampleSize)
	}
	if series.Volume < a.cfg.MinLiquidityVolume {
		return Metrics{}, fmt.Errorf("%s liquidity %.0f below minimum %.0f: %w",
			series.InstrumentID, series.Volume, a.cfg.MinLiquidityVolume, ErrNoQualifiedInstrument)
	}

	returns := make([]float64, 0, len(series.Prices)-1)
	for i := 1; i < len(series.Prices); i++ {
		prev := series.Prices[i-1]
		if prev == 0 {
			continue
		}
		returns = append(returns, (series.Prices[i]-prev)/prev)
	}
	if len(returns) < 2 {
		return Metrics{}, fmt.Errorf("%w: %s produced %d usable returns",
			ErrInsufficientData, series.InstrumentID, len(returns))
	}

	mean := 0.0
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	variance := 0.0
	for _, r := range returns {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(returns) - 1)
	sigma := math.Sqrt(variance)

	if sigma == 0 {
		return Metrics{}, fmt.Errorf("%s has zero volatility: %w", series.InstrumentID, ErrInsufficientData)
	}

	return Metrics{
		InstrumentID:    series.InstrumentID,
		Volatility:      sigma,
		MeanReturn:      mean,
		RiskReturnScore: mean / sigma,
		SampleSize:      len(series.Prices),
		LiquidityVolume: series.Volume,
		ComputedAt:      time.Now().UTC(),
	}, nil
}

// LastRanking returns the most recent analysis results, newest first.
func (a *Analyzer) LastRanking() ([]Metrics, time.Time) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Metrics, len(a.lastRanking))
	copy(out, a.lastRanking)
	return out, a.lastRunAt
}
