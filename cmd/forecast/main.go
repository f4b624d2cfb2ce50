package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"decter-engine/internal/forecast"
	"decter-engine/internal/market"
)

// Standalone recovery-forecast calculator. Answers "if I'm down X with
// these parameters, what does digging out look like" without touching
// the running engine.
func main() {
	loss := flag.Float64("loss", 0, "cumulative loss to recover (account currency)")
	stake := flag.Float64("stake", 2.0, "stake per accumulator contract")
	takeProfit := flag.Float64("tp", 0.015, "take-profit fraction per contract")
	sigma := flag.Float64("sigma", 0.002, "instrument volatility (stddev of tick returns)")
	instrument := flag.String("instrument", "R_10", "instrument the recovery would trade")
	flag.Parse()

	godotenv.Load()

	if *loss <= 0 {
		fmt.Fprintln(os.Stderr, "a positive -loss is required")
		flag.Usage()
		os.Exit(2)
	}
	if *stake <= 0 || *takeProfit <= 0 {
		fmt.Fprintln(os.Stderr, "-stake and -tp must be positive")
		os.Exit(2)
	}

	f := forecast.New(forecast.Config{})
	fc, err := f.Forecast(*loss, market.Metrics{
		InstrumentID: *instrument,
		Volatility:   *sigma,
	}, *stake, *takeProfit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "forecast failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Recovery forecast for %s\n", *instrument)
	fmt.Printf("  loss to recover:   %.2f (target %.2f with safety margin)\n", *loss, fc.RecoveryTarget)
	fmt.Printf("  stake / tp:        %.2f / %.2f%%\n", *stake, *takeProfit*100)
	fmt.Printf("  trades needed:     %d-%d\n", fc.EstimatedTradesMin, fc.EstimatedTradesMax)
	fmt.Printf("  required win rate: %.0f%%\n", fc.RequiredWinRate*100)
	fmt.Printf("  time estimate:     %s\n", fc.TimeEstimate)
	fmt.Printf("  success chance:    %.0f%%\n", fc.SuccessProbability*100)
	fmt.Printf("  risk level:        %s\n", fc.RiskLevel)
}
