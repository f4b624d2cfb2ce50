package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"decter-engine/config"
	"decter-engine/internal/api"
	"decter-engine/internal/confirm"
	"decter-engine/internal/deriv"
	"decter-engine/internal/engine"
	"decter-engine/internal/events"
	"decter-engine/internal/forecast"
	"decter-engine/internal/guard"
	"decter-engine/internal/logging"
	"decter-engine/internal/market"
	"decter-engine/internal/notification"
	"decter-engine/internal/params"
	"decter-engine/internal/risk"
	"decter-engine/internal/state"
	"decter-engine/internal/store"
	"decter-engine/internal/vault"
)

// broker is the surface the engine needs from the Deriv connection,
// satisfied by both the live client and the simulator.
type broker interface {
	market.DataProvider
	Balance(ctx context.Context) (float64, error)
	PlaceTrade(ctx context.Context, instrumentID string, stake, growthRate, takeProfit float64) error
	Outcomes() <-chan state.TradeOutcome
	Close()
}

func main() {
	// .env is optional; real deployments use environment variables
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	logger := logging.New(logging.Config{
		Level:  cfg.LoggingConfig.Level,
		Format: cfg.LoggingConfig.Format,
		Output: cfg.LoggingConfig.Output,
	})
	logger.Info().Msg("Structured logging initialized")

	eventBus := events.NewEventBus()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Deriv credentials come from Vault when enabled, env/config otherwise
	derivCfg := deriv.Config{
		Endpoint: cfg.DerivConfig.Endpoint,
		AppID:    cfg.DerivConfig.AppID,
		APIToken: cfg.DerivConfig.APIToken,
		Currency: cfg.DerivConfig.Currency,
	}
	if cfg.VaultConfig.Enabled {
		vaultClient, err := vault.NewClient(cfg.VaultConfig)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create vault client")
		}
		if err := vaultClient.Health(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Vault is unreachable")
		}
		creds, err := vaultClient.GetCredentials(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to fetch Deriv credentials from vault")
		}
		derivCfg.APIToken = creds.APIToken
		if creds.AppID != "" {
			derivCfg.AppID = creds.AppID
		}
		if creds.Currency != "" {
			derivCfg.Currency = creds.Currency
		}
		logger.Info().Msg("Deriv credentials loaded from vault")
	}

	// Broker connection: live websocket, or the simulator in mock mode
	var conn broker
	if cfg.DerivConfig.MockMode {
		logger.Warn().Msg("MOCK MODE: trading against the simulator, no real contracts")
		conn = deriv.NewSimulator(1000, logger)
	} else {
		client := deriv.NewClient(derivCfg, logger)
		if err := client.Connect(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to Deriv")
		}
		conn = client
	}
	defer conn.Close()

	balance, err := conn.Balance(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to fetch account balance")
	}
	logger.Info().Float64("balance", balance).Str("currency", derivCfg.Currency).Msg("Account ready")

	// State persistence: PostgreSQL when configured, memory otherwise
	var st store.Store
	if cfg.DatabaseConfig.Enabled {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseConfig.DSN(), logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		st = pg
	} else {
		logger.Warn().Msg("Database disabled, state will not survive restarts")
		st = store.NewMemoryStore()
	}
	defer st.Close()

	persister := store.NewPersister(st, logger)
	persister.OnDegraded(func(err error) {
		eventBus.Publish(events.Event{Type: events.EventPersistenceDegraded, Data: map[string]interface{}{
			"error": err.Error(),
		}})
	})
	persister.OnRestored(func() {
		eventBus.Publish(events.Event{Type: events.EventPersistenceRestored})
	})

	// Live status mirror for external dashboards
	var mirror *store.StatusMirror
	if cfg.RedisConfig.Enabled {
		mirror = store.NewStatusMirror(ctx, store.RedisOptions{
			Address:  cfg.RedisConfig.Address,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			PoolSize: cfg.RedisConfig.PoolSize,
		}, logger)
	} else {
		mirror = store.NewMemoryMirror(logger)
	}

	// Notifications double as the proposal confirmation channel
	notifyManager := notification.NewManager(cfg.NotificationConfig.Enabled)
	if cfg.NotificationConfig.Telegram.Enabled {
		notifyManager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
			BotToken: cfg.NotificationConfig.Telegram.BotToken,
			ChatID:   cfg.NotificationConfig.Telegram.ChatID,
			Enabled:  true,
		}))
		logger.Info().Msg("Telegram notifications enabled")
	}
	if cfg.NotificationConfig.Discord.Enabled {
		notifyManager.AddNotifier(notification.NewDiscordNotifier(notification.DiscordConfig{
			WebhookURL: cfg.NotificationConfig.Discord.WebhookURL,
			Enabled:    true,
		}))
		logger.Info().Msg("Discord notifications enabled")
	}

	gate := confirm.NewGate(confirm.Config{
		Timeout: cfg.ConfirmConfig.Timeout,
		Tick:    cfg.ConfirmConfig.Tick,
	}, notifyManager, logger)

	analyzer := market.NewAnalyzer(conn, market.Config{
		LookbackSamples:    cfg.MarketConfig.LookbackSamples,
		FetchTimeout:       cfg.MarketConfig.FetchTimeout,
		Workers:            cfg.MarketConfig.Workers,
		MinSampleSize:      cfg.MarketConfig.MinSampleSize,
		MinLiquidityVolume: cfg.MarketConfig.MinLiquidityVolume,
	}, logger)

	optimizer := params.NewOptimizer(params.Config{
		BaseGrowthRate:     cfg.ParamsConfig.BaseGrowthRate,
		BaseTakeProfit:     cfg.ParamsConfig.BaseTakeProfit,
		GrowthExponent:     cfg.ParamsConfig.GrowthExponent,
		ProfitExponent:     cfg.ParamsConfig.ProfitExponent,
		AlphaMin:           cfg.ParamsConfig.AlphaMin,
		AlphaMax:           cfg.ParamsConfig.AlphaMax,
		SmallBalanceMax:    cfg.ParamsConfig.SmallBalanceMax,
		MediumBalanceMax:   cfg.ParamsConfig.MediumBalanceMax,
		SmallStake:         cfg.ParamsConfig.SmallStake,
		MediumStake:        cfg.ParamsConfig.MediumStake,
		LargeStake:         cfg.ParamsConfig.LargeStake,
		HighVolThreshold:   cfg.ParamsConfig.HighVolThreshold,
		LowVolThreshold:    cfg.ParamsConfig.LowVolThreshold,
		RecoveryMultiplier: cfg.ParamsConfig.RecoveryMultiplier,
		StakeCapFraction:   cfg.ParamsConfig.StakeCapFraction,
	}, logger)

	forecaster := forecast.New(forecast.Config{
		Buffer:       cfg.ForecastConfig.Buffer,
		TradeCadence: cfg.ForecastConfig.TradeCadence,
		Steepness:    cfg.ForecastConfig.Steepness,
		Pivot:        cfg.ForecastConfig.Pivot,
		VolWeight:    cfg.ForecastConfig.VolWeight,
		VolNorm:      cfg.ForecastConfig.VolNorm,
	})

	eng := engine.New(engine.Config{
		Instruments:          cfg.EngineConfig.Instruments,
		TradeCadence:         cfg.EngineConfig.TradeCadence,
		DrawdownLimit:        cfg.EngineConfig.DrawdownLimit,
		ContingencyFactor:    cfg.EngineConfig.ContingencyFactor,
		DailyTargetMin:       cfg.EngineConfig.DailyTargetMin,
		DailyTargetMax:       cfg.EngineConfig.DailyTargetMax,
		DailyTargetBuffer:    cfg.EngineConfig.DailyTargetBuffer,
		WinStreakThreshold:   cfg.EngineConfig.WinStreakThreshold,
		WinStreakStakeFactor: cfg.EngineConfig.WinStreakStakeFactor,
		WinStreakTPFactor:    cfg.EngineConfig.WinStreakTPFactor,
		StakeCapFraction:     cfg.ParamsConfig.StakeCapFraction,
		StatusRefresh:        cfg.EngineConfig.StatusRefresh,
	}, engine.Deps{
		Persister:  persister,
		Analyzer:   analyzer,
		Optimizer:  optimizer,
		Forecaster: forecaster,
		Reducer:    risk.NewReducer(risk.Config{Decay: cfg.RiskConfig.Decay, Floor: cfg.RiskConfig.Floor}, logger),
		Guard:      guard.New(guard.Config{DrawLimit: cfg.EngineConfig.DrawLimit}, logger),
		Gate:       gate,
		Executor:   conn,
		Notifier:   notifyManager,
		Bus:        eventBus,
		Mirror:     mirror,
		Outcomes:   conn.Outcomes(),
	}, logger)

	if err := eng.Start(ctx, balance); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start engine")
	}

	server := api.NewServer(api.ServerConfig{
		Port:           cfg.ServerConfig.Port,
		Host:           cfg.ServerConfig.Host,
		ProductionMode: true,
		AllowedOrigins: splitOrigins(cfg.ServerConfig.AllowedOrigins),
	}, eng, gate, st, eventBus, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	logger.Info().
		Str("host", cfg.ServerConfig.Host).
		Int("port", cfg.ServerConfig.Port).
		Bool("mock_mode", cfg.DerivConfig.MockMode).
		Msg("Decter engine running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.ServerConfig.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	eng.Stop()
	logger.Info().Msg("Shutdown complete")
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
