package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"decter-engine/internal/confirm"
	"decter-engine/internal/events"
	"decter-engine/internal/forecast"
	"decter-engine/internal/guard"
	"decter-engine/internal/market"
	"decter-engine/internal/params"
	"decter-engine/internal/risk"
	"decter-engine/internal/state"
	"decter-engine/internal/store"
)

// Executor places accumulator contracts with the broker.
type Executor interface {
	PlaceTrade(ctx context.Context, instrumentID string, stake, growthRate, takeProfit float64) error
}

// Analyzer ranks candidate instruments.
type Analyzer interface {
	Analyze(ctx context.Context, candidates []string) ([]market.Metrics, error)
}

// Notifier delivers operator-facing alerts. The confirmation gate carries
// its own channel, so proposals are not part of this interface.
type Notifier interface {
	SendTradeClose(o state.TradeOutcome) error
	SendModeSwitch(from, to state.Mode, instrument string, cumulativeLoss float64) error
	SendRiskReduction(failures int, factor, stake float64) error
	SendRecoveryComplete(netPL float64, trades int) error
	SendEmergencyHalt(reason string) error
	SendDailyTarget(profitPct, target float64) error
	SendError(title, message string) error
}

// Config holds the engine cycle settings.
type Config struct {
	Instruments          []string
	TradeCadence         time.Duration
	DrawdownLimit        float64
	ContingencyFactor    float64
	DailyTargetMin       float64
	DailyTargetMax       float64
	DailyTargetBuffer    float64
	WinStreakThreshold   int
	WinStreakStakeFactor float64
	WinStreakTPFactor    float64
	StakeCapFraction     float64
	StatusRefresh        time.Duration
}

// Status is the read-only snapshot served to the API and status mirror.
type Status struct {
	State          *state.EngineState `json:"state"`
	Pending        *params.Proposal   `json:"pending_proposal,omitempty"`
	TradingEnabled bool               `json:"trading_enabled"`
	Degraded       bool               `json:"persistence_degraded"`
	Timestamp      time.Time          `json:"timestamp"`
}

type commandKind int

const (
	cmdResume commandKind = iota
	cmdStartTrading
	cmdStopTrading
	cmdTriggerAnalysis
	cmdNewSession
)

type command struct {
	kind commandKind
}

type analysisResult struct {
	proposal *params.Proposal
	top      market.Metrics
	err      error
}

// Engine owns the trading state machine. All state mutation happens on the
// run loop goroutine; other goroutines talk to it through channels and read
// through the status snapshot.
type Engine struct {
	cfg    Config
	logger zerolog.Logger

	st         *state.EngineState
	persister  *store.Persister
	analyzer   Analyzer
	optimizer  *params.Optimizer
	forecaster *forecast.Forecaster
	reducer    *risk.Reducer
	guard      *guard.Guard
	gate       *confirm.Gate
	exec       Executor
	notifier   Notifier
	bus        *events.EventBus
	mirror     *store.StatusMirror

	outcomes     <-chan state.TradeOutcome
	commands     chan command
	analysisDone chan analysisResult
	tradeC       chan struct{}
	stopc        chan struct{}
	done         chan struct{}
	stopOnce     sync.Once

	tradingEnabled bool
	rng            *rand.Rand

	statusMu sync.RWMutex
	status   Status
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Persister  *store.Persister
	Analyzer   Analyzer
	Optimizer  *params.Optimizer
	Forecaster *forecast.Forecaster
	Reducer    *risk.Reducer
	Guard      *guard.Guard
	Gate       *confirm.Gate
	Executor   Executor
	Notifier   Notifier
	Bus        *events.EventBus
	Mirror     *store.StatusMirror
	Outcomes   <-chan state.TradeOutcome
}

func New(cfg Config, deps Deps, logger zerolog.Logger) *Engine {
	if cfg.TradeCadence <= 0 {
		cfg.TradeCadence = 30 * time.Second
	}
	if cfg.StatusRefresh <= 0 {
		cfg.StatusRefresh = 3 * time.Second
	}
	return &Engine{
		cfg:          cfg,
		logger:       logger.With().Str("component", "Engine").Logger(),
		persister:    deps.Persister,
		analyzer:     deps.Analyzer,
		optimizer:    deps.Optimizer,
		forecaster:   deps.Forecaster,
		reducer:      deps.Reducer,
		guard:        deps.Guard,
		gate:         deps.Gate,
		exec:         deps.Executor,
		notifier:     deps.Notifier,
		bus:          deps.Bus,
		mirror:       deps.Mirror,
		outcomes:     deps.Outcomes,
		commands:     make(chan command, 8),
		analysisDone: make(chan analysisResult, 1),
		tradeC:       make(chan struct{}, 1),
		stopc:        make(chan struct{}),
		done:         make(chan struct{}),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start restores saved state (or begins a fresh session with the given
// balance) and launches the run loop.
func (e *Engine) Start(ctx context.Context, startBalance float64) error {
	saved, err := e.persister.Load(ctx)
	switch {
	case err == nil:
		e.st = saved
		e.restorePhase()
		e.logger.Info().
			Str("mode", string(e.st.Mode)).
			Str("phase", string(e.st.Phase)).
			Float64("balance", e.st.Balance).
			Msg("Engine state restored")
	case errors.Is(err, store.ErrNotFound):
		e.st = state.New(startBalance, e.cfg.DrawdownLimit, e.newDailyTarget())
		e.logger.Info().
			Float64("balance", startBalance).
			Float64("daily_target", e.st.DailyProfitTarget).
			Msg("Starting fresh session")
	default:
		return fmt.Errorf("load state: %w", err)
	}

	e.bus.Publish(events.Event{Type: events.EventEngineStarted, Data: map[string]interface{}{
		"mode": string(e.st.Mode), "balance": e.st.Balance,
	}})

	go e.run(ctx)
	return nil
}

// restorePhase normalizes transient phases that cannot survive a restart.
// A pending confirmation or in-flight analysis is gone; an emergency halt
// stays latched.
func (e *Engine) restorePhase() {
	switch e.st.Phase {
	case state.PhaseAnalyzingDrawdown, state.PhaseAwaitingConfirmation:
		e.st.Phase = state.PhaseTrading
	case state.PhaseEmergencyHalt:
		e.guard.Trip(e.st.HaltReason)
	}
	if e.st.DrawdownLimit <= 0 {
		e.st.DrawdownLimit = e.cfg.DrawdownLimit
	}
}

// Stop shuts the loop down; pending work is dropped.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopc) })
	<-e.done
}

// Resume clears an emergency halt.
func (e *Engine) Resume() {
	e.commands <- command{kind: cmdResume}
}

// StartTrading enables trading in the current session.
func (e *Engine) StartTrading() {
	e.commands <- command{kind: cmdStartTrading}
}

// StopTrading pauses trading without losing state.
func (e *Engine) StopTrading() {
	e.commands <- command{kind: cmdStopTrading}
}

// TriggerAnalysis forces a market analysis round.
func (e *Engine) TriggerAnalysis() {
	e.commands <- command{kind: cmdTriggerAnalysis}
}

// NewSession resets session statistics and draws a fresh daily target.
func (e *Engine) NewSession() {
	e.commands <- command{kind: cmdNewSession}
}

// Status returns the latest snapshot.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	if e.st.Phase == state.PhaseTrading {
		e.tradingEnabled = true
		e.scheduleTrade(0)
	}
	e.publishStatus(ctx)

	ticker := time.NewTicker(e.cfg.StatusRefresh)
	defer ticker.Stop()

	for {
		select {
		case o := <-e.outcomes:
			e.applyOutcome(ctx, o)
		case res := <-e.gate.Results():
			e.applyResolution(ctx, res)
		case ar := <-e.analysisDone:
			e.applyAnalysis(ctx, ar)
		case cmd := <-e.commands:
			e.applyCommand(ctx, cmd)
		case <-e.tradeC:
			e.placeTrade(ctx)
		case <-ticker.C:
			e.publishStatus(ctx)
		case <-ctx.Done():
			e.shutdown(ctx)
			return
		case <-e.stopc:
			e.shutdown(ctx)
			return
		}
	}
}

func (e *Engine) shutdown(ctx context.Context) {
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.persister.Save(saveCtx, e.st); err != nil {
		e.logger.Error().Err(err).Msg("Final state save failed")
	}
	e.bus.Publish(events.Event{Type: events.EventEngineStopped})
	e.logger.Info().Msg("Engine stopped")
}

// applyOutcome folds a settled trade into the state machine. This is where
// streaks, guardrails, recovery progress, and drawdown triggers all meet.
func (e *Engine) applyOutcome(ctx context.Context, o state.TradeOutcome) {
	o.Mode = e.st.Mode
	e.st.Record(o)
	if !o.Win {
		e.st.CumulativeLoss += -o.ProfitLoss
	}

	e.logger.Info().
		Str("contract", o.ContractID).
		Str("instrument", o.InstrumentID).
		Float64("pnl", o.ProfitLoss).
		Float64("balance", e.st.Balance).
		Int("loss_streak", e.st.LossStreak).
		Float64("cumulative_loss", e.st.CumulativeLoss).
		Msg("Trade settled")

	e.persister.AppendTrade(ctx, o)
	e.bus.PublishTradeClosed(o.InstrumentID, o.ContractID, o.Stake, o.ProfitLoss, o.BalanceAfter, o.Win)
	if e.notifier != nil {
		if err := e.notifier.SendTradeClose(o); err != nil {
			e.logger.Debug().Err(err).Msg("Trade notification failed")
		}
	}

	// Catastrophic single-trade loss halts everything first.
	if e.guard.Check(o, e.st.Params) {
		_, reason := e.guard.Tripped()
		e.enterHalt(ctx, reason)
		return
	}

	if e.st.Mode == state.ModeRecovery && !o.Win {
		e.reduceRecoveryStake()
	}

	if e.st.Mode == state.ModeRecovery && e.st.Stats.NetPL >= 0 {
		e.completeRecovery(ctx)
	}

	if e.st.Mode == state.ModeContinuous &&
		e.cfg.WinStreakThreshold > 0 &&
		e.st.ConsecutiveWins >= e.cfg.WinStreakThreshold {
		e.scaleBackAfterWinStreak()
	}

	if e.dailyTargetReached() {
		e.autoStop(ctx)
		e.persistAndPublish(ctx)
		return
	}

	if e.st.Phase == state.PhaseTrading && e.st.CumulativeLoss >= e.st.DrawdownLimit {
		e.startAnalysis(ctx)
		e.persistAndPublish(ctx)
		return
	}

	e.persistAndPublish(ctx)
	if e.st.Phase == state.PhaseTrading && e.tradingEnabled {
		e.scheduleTrade(e.cfg.TradeCadence)
	}
}

func (e *Engine) reduceRecoveryStake() {
	e.st.RecoveryFailures++
	factor := e.reducer.Factor(e.st.RecoveryFailures)
	e.st.RecoveryRiskFactor = factor
	stake := e.reducer.NextStake(e.st.RecoveryBaseStake, e.st.RecoveryFailures)
	e.st.Params.Stake = math.Round(stake*100) / 100

	e.logger.Warn().
		Int("failures", e.st.RecoveryFailures).
		Float64("factor", factor).
		Float64("stake", e.st.Params.Stake).
		Msg("Recovery loss, stake reduced")

	e.bus.PublishRiskReduced(e.st.RecoveryFailures, factor, e.st.Params.Stake)
	if e.notifier != nil {
		if err := e.notifier.SendRiskReduction(e.st.RecoveryFailures, factor, e.st.Params.Stake); err != nil {
			e.logger.Debug().Err(err).Msg("Risk notification failed")
		}
	}
}

func (e *Engine) completeRecovery(ctx context.Context) {
	from := e.st.Mode
	fromInstrument := e.st.Params.InstrumentID
	e.st.Mode = state.ModeContinuous
	if e.st.PreRecoveryParams.InstrumentID != "" {
		e.st.Params = e.st.PreRecoveryParams
	}
	e.st.RecoveryFailures = 0
	e.st.RecoveryRiskFactor = 1.0
	e.st.RecoveryBaseStake = 0
	e.st.CumulativeLoss = 0
	e.st.LossStreak = 0
	e.st.DrawdownLimit = e.cfg.DrawdownLimit
	e.st.DailyProfitTarget = e.newDailyTarget()
	e.st.TotalModeSwitches++

	e.logger.Info().
		Float64("net_pl", e.st.Stats.NetPL).
		Str("instrument", e.st.Params.InstrumentID).
		Float64("daily_target", e.st.DailyProfitTarget).
		Msg("Recovery complete, back to continuous mode")

	e.persister.AppendModeSwitch(ctx, store.ModeSwitchRecord{
		ID:             uuid.NewString(),
		FromMode:       from,
		ToMode:         e.st.Mode,
		FromInstrument: fromInstrument,
		ToInstrument:   e.st.Params.InstrumentID,
		Decision:       "recovery_complete",
		SwitchedAt:     time.Now().UTC(),
	})
	e.bus.Publish(events.Event{Type: events.EventRecoveryComplete, Data: map[string]interface{}{
		"net_pl": e.st.Stats.NetPL,
	}})
	e.bus.PublishModeSwitched(string(from), string(e.st.Mode), e.st.Params.InstrumentID,
		e.st.LossStreak, e.st.CumulativeLoss)

	if e.notifier != nil {
		if err := e.notifier.SendRecoveryComplete(e.st.Stats.NetPL, e.st.Stats.TotalTrades); err != nil {
			e.logger.Debug().Err(err).Msg("Recovery notification failed")
		}
	}
}

func (e *Engine) scaleBackAfterWinStreak() {
	e.st.Params.Stake = math.Round(e.st.Params.Stake*e.cfg.WinStreakStakeFactor*100) / 100
	e.st.Params.TakeProfit *= e.cfg.WinStreakTPFactor
	streak := e.st.ConsecutiveWins
	e.st.ConsecutiveWins = 0

	e.logger.Info().
		Int("streak", streak).
		Float64("stake", e.st.Params.Stake).
		Float64("take_profit", e.st.Params.TakeProfit).
		Msg("Win streak threshold hit, scaling back to protect profits")

	e.bus.Publish(events.Event{Type: events.EventWinStreakScaled, Data: map[string]interface{}{
		"streak": streak,
		"stake":  e.st.Params.Stake,
	}})
}

func (e *Engine) dailyTargetReached() bool {
	if e.st.DailyProfitTarget <= 0 {
		return false
	}
	return e.st.SessionProfitPct() >= e.st.DailyProfitTarget+e.cfg.DailyTargetBuffer
}

func (e *Engine) autoStop(ctx context.Context) {
	e.st.Phase = state.PhaseIdle
	e.tradingEnabled = false

	profit := e.st.SessionProfitPct()
	e.logger.Info().
		Float64("session_profit_pct", profit*100).
		Float64("target_pct", e.st.DailyProfitTarget*100).
		Msg("Daily profit target reached, trading paused")

	e.bus.Publish(events.Event{Type: events.EventDailyTargetHit, Data: map[string]interface{}{
		"profit_pct": profit,
		"target":     e.st.DailyProfitTarget,
	}})
	if e.notifier != nil {
		if err := e.notifier.SendDailyTarget(profit, e.st.DailyProfitTarget); err != nil {
			e.logger.Debug().Err(err).Msg("Daily target notification failed")
		}
	}
}

func (e *Engine) enterHalt(ctx context.Context, reason string) {
	e.st.Phase = state.PhaseEmergencyHalt
	e.st.HaltReason = reason
	e.tradingEnabled = false

	e.bus.PublishEmergencyHalt(reason)
	if e.notifier != nil {
		if err := e.notifier.SendEmergencyHalt(reason); err != nil {
			e.logger.Error().Err(err).Msg("Halt notification failed")
		}
	}
	e.persistAndPublish(ctx)
}

// startAnalysis kicks off a market scan in the background; the result
// lands back on the run loop through analysisDone. Only a pass triggered
// by the drawdown limit proposes recovery-mode parameters; an operator
// asking for a scan on a healthy session gets a continuous-mode proposal
// with no recovery forecast.
func (e *Engine) startAnalysis(ctx context.Context) {
	e.st.Phase = state.PhaseAnalyzingDrawdown
	loss := e.st.CumulativeLoss
	sigmaRef := e.st.SigmaReference
	balance := e.st.Balance
	drawdown := loss >= e.st.DrawdownLimit

	if drawdown {
		e.logger.Warn().
			Float64("cumulative_loss", loss).
			Float64("limit", e.st.DrawdownLimit).
			Msg("Drawdown limit reached, analyzing market")
	} else {
		e.logger.Info().
			Float64("cumulative_loss", loss).
			Msg("Analyzing market on request")
	}
	e.bus.Publish(events.Event{Type: events.EventAnalysisStarted, Data: map[string]interface{}{
		"cumulative_loss": loss,
	}})

	go func() {
		ranked, err := e.analyzer.Analyze(ctx, e.cfg.Instruments)
		if err != nil {
			select {
			case e.analysisDone <- analysisResult{err: err}:
			case <-e.stopc:
			}
			return
		}

		top := ranked[0]
		if sigmaRef <= 0 {
			sigmaRef = top.Volatility
		}
		mode := state.ModeContinuous
		if drawdown {
			mode = state.ModeRecovery
		}
		proposal := e.optimizer.Optimize(sigmaRef, top, balance, mode)

		if drawdown {
			fc, ferr := e.forecaster.Forecast(loss, top, proposal.Stake, proposal.TakeProfit)
			if ferr != nil {
				e.logger.Warn().Err(ferr).Msg("Recovery forecast unavailable")
			} else {
				proposal.Forecast = fc
			}
		}

		select {
		case e.analysisDone <- analysisResult{proposal: proposal, top: top}:
		case <-e.stopc:
		}
	}()
}

func (e *Engine) applyAnalysis(ctx context.Context, ar analysisResult) {
	if ar.err != nil {
		e.bus.Publish(events.Event{Type: events.EventAnalysisFailed, Data: map[string]interface{}{
			"error": ar.err.Error(),
		}})

		if errors.Is(ar.err, market.ErrNoQualifiedInstrument) {
			// Contingency: raise the trigger so the engine does not spin
			// on analysis, keep trading current parameters, let the
			// operator know.
			oldLimit := e.st.DrawdownLimit
			e.st.DrawdownLimit = oldLimit * e.cfg.ContingencyFactor
			e.logger.Error().
				Err(ar.err).
				Float64("old_limit", oldLimit).
				Float64("new_limit", e.st.DrawdownLimit).
				Msg("No qualified instrument, raising drawdown threshold and continuing")
			if e.notifier != nil {
				e.notifier.SendError("Market analysis failed",
					fmt.Sprintf("No instrument qualified. Drawdown threshold raised %.2f -> %.2f; trading continues on current parameters.",
						oldLimit, e.st.DrawdownLimit))
			}
		} else {
			e.logger.Error().Err(ar.err).Msg("Market analysis failed")
			if e.notifier != nil {
				e.notifier.SendError("Market analysis failed", ar.err.Error())
			}
		}

		e.st.Phase = state.PhaseTrading
		e.persistAndPublish(ctx)
		if e.tradingEnabled {
			e.scheduleTrade(e.cfg.TradeCadence)
		}
		return
	}

	if e.st.SigmaReference <= 0 {
		e.st.SigmaReference = ar.top.Volatility
		e.logger.Info().Float64("sigma_reference", e.st.SigmaReference).Msg("Session volatility reference anchored")
	}

	e.st.Phase = state.PhaseAwaitingConfirmation
	if err := e.gate.Submit(ar.proposal); err != nil {
		e.logger.Error().Err(err).Msg("Could not submit proposal, resuming current parameters")
		e.st.Phase = state.PhaseTrading
		e.persistAndPublish(ctx)
		if e.tradingEnabled {
			e.scheduleTrade(e.cfg.TradeCadence)
		}
		return
	}

	e.bus.PublishProposalCreated(ar.proposal.ID, ar.proposal.InstrumentID,
		ar.proposal.Stake, ar.proposal.GrowthRate, ar.proposal.TakeProfit)
	e.persistAndPublish(ctx)
}

func (e *Engine) applyResolution(ctx context.Context, res confirm.Resolution) {
	e.bus.PublishProposalResolved(res.Proposal.ID, string(res.Decision))

	if res.Decision == confirm.Rejected {
		// Operator declined: stay in the current mode on current
		// parameters; counters are deliberately not reset, so the next
		// loss will re-trigger analysis.
		e.logger.Info().
			Str("proposal_id", res.Proposal.ID).
			Msg("Proposal rejected, continuing on current parameters")
		e.st.Phase = state.PhaseTrading
		e.persistAndPublish(ctx)
		if e.tradingEnabled {
			e.scheduleTrade(e.cfg.TradeCadence)
		}
		return
	}

	from := e.st.Mode
	fromInstrument := e.st.Params.InstrumentID
	triggerStreak := e.st.LossStreak
	triggerLoss := e.st.CumulativeLoss
	if from == state.ModeContinuous && res.Proposal.Mode == state.ModeRecovery {
		e.st.PreRecoveryParams = e.st.Params
	}

	e.st.Mode = res.Proposal.Mode
	e.st.Params = res.Proposal.Params()
	e.st.RecoveryBaseStake = res.Proposal.Stake
	e.st.RecoveryFailures = 0
	e.st.RecoveryRiskFactor = 1.0
	e.st.CumulativeLoss = 0
	e.st.LossStreak = 0
	e.st.DrawdownLimit = e.cfg.DrawdownLimit
	e.st.TotalModeSwitches++
	e.st.Phase = state.PhaseTrading
	if from == state.ModeRecovery && e.st.Mode == state.ModeContinuous {
		e.st.DailyProfitTarget = e.newDailyTarget()
	}

	e.logger.Info().
		Str("proposal_id", res.Proposal.ID).
		Str("decision", string(res.Decision)).
		Str("from", string(from)).
		Str("to", string(e.st.Mode)).
		Str("instrument", e.st.Params.InstrumentID).
		Msg("Proposal applied, mode switched")

	e.persister.AppendModeSwitch(ctx, store.ModeSwitchRecord{
		ID:             uuid.NewString(),
		FromMode:       from,
		ToMode:         e.st.Mode,
		FromInstrument: fromInstrument,
		ToInstrument:   e.st.Params.InstrumentID,
		LossStreak:     triggerStreak,
		CumulativeLoss: triggerLoss,
		Volatility:     res.Proposal.Metrics.Volatility,
		Decision:       string(res.Decision),
		SwitchedAt:     time.Now().UTC(),
	})
	e.bus.PublishModeSwitched(string(from), string(e.st.Mode), e.st.Params.InstrumentID,
		e.st.LossStreak, e.st.CumulativeLoss)
	if e.notifier != nil {
		if err := e.notifier.SendModeSwitch(from, e.st.Mode, e.st.Params.InstrumentID, triggerLoss); err != nil {
			e.logger.Debug().Err(err).Msg("Mode switch notification failed")
		}
	}

	e.persistAndPublish(ctx)
	if e.tradingEnabled {
		e.scheduleTrade(e.cfg.TradeCadence)
	}
}

func (e *Engine) applyCommand(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdResume:
		if e.st.Phase != state.PhaseEmergencyHalt {
			e.logger.Warn().Str("phase", string(e.st.Phase)).Msg("Resume ignored, engine is not halted")
			return
		}
		e.guard.Resume()
		e.st.HaltReason = ""
		e.st.Phase = state.PhaseTrading
		e.tradingEnabled = true
		e.bus.Publish(events.Event{Type: events.EventTradingResumed})
		e.logger.Info().Msg("Emergency halt cleared by operator")
		e.persistAndPublish(ctx)
		e.scheduleTrade(e.cfg.TradeCadence)

	case cmdStartTrading:
		if e.st.Phase == state.PhaseEmergencyHalt {
			e.logger.Warn().Msg("Cannot start trading while halted, resume first")
			return
		}
		if e.st.Phase == state.PhaseIdle {
			e.st.Phase = state.PhaseTrading
		}
		e.tradingEnabled = true
		e.persistAndPublish(ctx)
		e.scheduleTrade(0)

	case cmdStopTrading:
		e.tradingEnabled = false
		if e.st.Phase == state.PhaseTrading {
			e.st.Phase = state.PhaseIdle
		}
		e.persistAndPublish(ctx)

	case cmdTriggerAnalysis:
		if e.st.Phase == state.PhaseTrading || e.st.Phase == state.PhaseIdle {
			e.startAnalysis(ctx)
			e.persistAndPublish(ctx)
		}

	case cmdNewSession:
		e.st.SessionStartBalance = e.st.Balance
		e.st.DailyProfitTarget = e.newDailyTarget()
		e.st.Stats = state.Stats{}
		e.st.CumulativeLoss = 0
		e.st.LossStreak = 0
		e.st.ConsecutiveWins = 0
		e.logger.Info().
			Float64("daily_target_pct", e.st.DailyProfitTarget*100).
			Msg("New session started")
		e.persistAndPublish(ctx)
	}
}

// placeTrade opens the next accumulator contract with the active
// parameters, capped to the configured balance fraction.
func (e *Engine) placeTrade(ctx context.Context) {
	if e.st.Phase != state.PhaseTrading || !e.tradingEnabled {
		return
	}
	p := e.st.Params
	if p.InstrumentID == "" {
		e.logger.Debug().Msg("No active instrument yet, waiting for analysis")
		return
	}

	stake := p.Stake
	if limit := e.st.Balance * e.cfg.StakeCapFraction; e.cfg.StakeCapFraction > 0 && stake > limit {
		stake = math.Round(limit*100) / 100
	}

	if err := e.exec.PlaceTrade(ctx, p.InstrumentID, stake, p.GrowthRate, p.TakeProfit); err != nil {
		e.logger.Error().Err(err).Str("instrument", p.InstrumentID).Msg("Trade placement failed")
		e.bus.PublishError("engine", "trade placement failed", err)
		e.scheduleTrade(e.cfg.TradeCadence)
	}
}

// scheduleTrade arms the rebuy timer; at most one trade tick is queued.
func (e *Engine) scheduleTrade(after time.Duration) {
	time.AfterFunc(after, func() {
		select {
		case e.tradeC <- struct{}{}:
		default:
		}
	})
}

func (e *Engine) newDailyTarget() float64 {
	span := e.cfg.DailyTargetMax - e.cfg.DailyTargetMin
	if span <= 0 {
		return e.cfg.DailyTargetMin
	}
	return e.cfg.DailyTargetMin + e.rng.Float64()*span
}

func (e *Engine) persistAndPublish(ctx context.Context) {
	e.st.UpdatedAt = time.Now().UTC()
	if err := e.persister.Save(ctx, e.st); err != nil {
		e.bus.Publish(events.Event{Type: events.EventPersistenceDegraded, Data: map[string]interface{}{
			"error": err.Error(),
		}})
	}
	e.publishStatus(ctx)
}

func (e *Engine) publishStatus(ctx context.Context) {
	status := Status{
		State:          e.st.Clone(),
		Pending:        e.gate.Pending(),
		TradingEnabled: e.tradingEnabled,
		Degraded:       e.persister.Degraded(),
		Timestamp:      time.Now().UTC(),
	}

	e.statusMu.Lock()
	e.status = status
	e.statusMu.Unlock()

	if e.mirror != nil {
		if err := e.mirror.Publish(ctx, status); err != nil {
			e.logger.Debug().Err(err).Msg("Status mirror publish failed")
		}
	}
	events.BroadcastStatus(status)
}
