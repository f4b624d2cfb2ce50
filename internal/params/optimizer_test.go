package params

import (
	"math"
	"testing"

	"github.com/rs/zerolog"

	"decter-engine/internal/market"
	"decter-engine/internal/state"
)

func testConfig() Config {
	return Config{
		BaseGrowthRate:     0.01,
		BaseTakeProfit:     0.015,
		GrowthExponent:     0.5,
		ProfitExponent:     0.7,
		AlphaMin:           0.5,
		AlphaMax:           2.0,
		SmallBalanceMax:    100,
		MediumBalanceMax:   1000,
		SmallStake:         0.5,
		MediumStake:        2.0,
		LargeStake:         5.0,
		HighVolThreshold:   0.40,
		LowVolThreshold:    0.15,
		RecoveryMultiplier: 1.8,
		StakeCapFraction:   0.10,
	}
}

func testMetrics(sigma float64) market.Metrics {
	return market.Metrics{
		InstrumentID:    "R_10",
		Volatility:      sigma,
		MeanReturn:      0.0001,
		RiskReturnScore: 0.01,
		SampleSize:      1800,
	}
}

func newTestOptimizer() *Optimizer {
	return NewOptimizer(testConfig(), zerolog.Nop())
}

func TestStakeTiers(t *testing.T) {
	o := newTestOptimizer()
	cases := []struct {
		balance float64
		want    float64
	}{
		{50, 0.5},
		{99.99, 0.5},
		{100, 2.0},
		{999, 2.0},
		{1000, 5.0},
		{25000, 5.0},
	}
	for _, tc := range cases {
		p := o.Optimize(0.01, testMetrics(0.01), tc.balance, state.ModeContinuous)
		if p.Stake != tc.want {
			t.Errorf("balance %.2f: stake = %.2f, want %.2f", tc.balance, p.Stake, tc.want)
		}
	}
}

func TestNeutralVolatilityUsesBaseParams(t *testing.T) {
	o := newTestOptimizer()
	p := o.Optimize(0.01, testMetrics(0.01), 500, state.ModeContinuous)
	if p.GrowthRate != 0.01 {
		t.Errorf("GrowthRate = %f, want base 0.01", p.GrowthRate)
	}
	if math.Abs(p.TakeProfit-0.015) > 1e-9 {
		t.Errorf("TakeProfit = %f, want base 0.015", p.TakeProfit)
	}
	if p.Frequency != FrequencyMedium {
		t.Errorf("Frequency = %s, want medium", p.Frequency)
	}
}

func TestCalmInstrumentGetsFasterGrowth(t *testing.T) {
	o := newTestOptimizer()
	// Instrument at half the reference volatility: alpha = 2.
	p := o.Optimize(0.02, testMetrics(0.01), 500, state.ModeContinuous)
	if p.GrowthRate < 0.01 {
		t.Errorf("GrowthRate = %f, want at least base", p.GrowthRate)
	}
	if p.TakeProfit <= 0.015 {
		t.Errorf("TakeProfit = %f, want above base", p.TakeProfit)
	}
}

func TestHighVolatilityBracket(t *testing.T) {
	o := newTestOptimizer()
	// 50% above reference trips the high-volatility bracket.
	p := o.Optimize(0.01, testMetrics(0.015), 500, state.ModeContinuous)
	if p.Frequency != FrequencyLow {
		t.Errorf("Frequency = %s, want low", p.Frequency)
	}
	if p.Stake != 1.0 {
		t.Errorf("Stake = %f, want halved tier stake 1.0", p.Stake)
	}
}

func TestLowVolatilityBracket(t *testing.T) {
	o := newTestOptimizer()
	// 20% below reference trips the low-volatility bracket.
	p := o.Optimize(0.01, testMetrics(0.008), 500, state.ModeContinuous)
	if p.Frequency != FrequencyHigh {
		t.Errorf("Frequency = %s, want high", p.Frequency)
	}
	if p.Stake != 2.5 {
		t.Errorf("Stake = %f, want boosted tier stake 2.5", p.Stake)
	}
}

func TestScalingFactorsClampedAfterExponentiation(t *testing.T) {
	o := newTestOptimizer()

	// Reference 5x the instrument volatility: the raw profit factor
	// 5^0.7 ≈ 3.09 must be clamped to AlphaMax, not computed from a
	// pre-clamped ratio (2^0.7 ≈ 1.62). The low-volatility bracket then
	// applies its 0.9 trim.
	p := o.Optimize(0.05, testMetrics(0.01), 500, state.ModeContinuous)
	if math.Abs(p.TakeProfit-0.015*2.0*0.9) > 1e-9 {
		t.Errorf("TakeProfit = %f, want AlphaMax-clamped 0.027", p.TakeProfit)
	}
	if p.GrowthRate != 0.02 {
		t.Errorf("GrowthRate = %f, want 0.02", p.GrowthRate)
	}

	// Reference at a tenth of the instrument volatility: 0.1^0.7 ≈ 0.20
	// clamps up to AlphaMin, then the high-volatility bracket raises take
	// profit by 1.2.
	p = o.Optimize(0.001, testMetrics(0.01), 500, state.ModeContinuous)
	if math.Abs(p.TakeProfit-0.015*0.5*1.2) > 1e-9 {
		t.Errorf("TakeProfit = %f, want AlphaMin-clamped 0.009", p.TakeProfit)
	}
}

func TestRecoveryModeScalesStake(t *testing.T) {
	o := newTestOptimizer()
	cont := o.Optimize(0.01, testMetrics(0.01), 500, state.ModeContinuous)
	rec := o.Optimize(0.01, testMetrics(0.01), 500, state.ModeRecovery)
	if math.Abs(rec.Stake-cont.Stake*1.8) > 1e-9 {
		t.Errorf("recovery stake = %f, want %f", rec.Stake, cont.Stake*1.8)
	}
	if rec.Mode != state.ModeRecovery {
		t.Errorf("Mode = %s", rec.Mode)
	}
}

func TestStakeCappedAtBalanceFraction(t *testing.T) {
	o := newTestOptimizer()
	// Balance 8: tier stake 0.5 scaled by 1.8 would be 0.9, above the
	// 10% cap of 0.80.
	p := o.Optimize(0.01, testMetrics(0.01), 8, state.ModeRecovery)
	if p.Stake > 0.8+1e-9 {
		t.Errorf("Stake = %f, want at most 10%% of balance 8", p.Stake)
	}
	if p.Stake < minStake {
		t.Errorf("Stake = %f fell below broker minimum", p.Stake)
	}
}

func TestSnapGrowthRate(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0.009, 0.01},
		{0.014, 0.01},
		{0.016, 0.02},
		{0.037, 0.04},
		{0.09, 0.05},
	}
	for _, tc := range cases {
		if got := snapGrowthRate(tc.in); got != tc.want {
			t.Errorf("snapGrowthRate(%f) = %f, want %f", tc.in, got, tc.want)
		}
	}
}

func TestProposalHasIdentityAndRationale(t *testing.T) {
	o := newTestOptimizer()
	p := o.Optimize(0.01, testMetrics(0.01), 500, state.ModeContinuous)
	if p.ID == "" {
		t.Error("proposal missing ID")
	}
	if p.Rationale == "" {
		t.Error("proposal missing rationale")
	}
	if p.CreatedAt.IsZero() {
		t.Error("proposal missing creation time")
	}
	ap := p.Params()
	if ap.InstrumentID != "R_10" || ap.Stake != p.Stake {
		t.Errorf("Params() = %+v", ap)
	}
}
