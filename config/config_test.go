package config

import (
	"testing"
	"time"
)

func validConfig() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	return cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}

	if cfg.EngineConfig.DrawdownLimit != 100.0 {
		t.Errorf("DrawdownLimit = %f, want 100", cfg.EngineConfig.DrawdownLimit)
	}
	if cfg.RiskConfig.Decay != 0.85 || cfg.RiskConfig.Floor != 0.30 {
		t.Errorf("risk defaults = %f/%f", cfg.RiskConfig.Decay, cfg.RiskConfig.Floor)
	}
	if cfg.ConfirmConfig.Timeout != 30*time.Second {
		t.Errorf("confirm timeout = %s", cfg.ConfirmConfig.Timeout)
	}
	if len(cfg.EngineConfig.Instruments) == 0 {
		t.Error("expected default instrument list")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ENGINE_DRAWDOWN_LIMIT", "55.5")
	t.Setenv("ENGINE_INSTRUMENTS", "R_10, 1HZ100V")
	t.Setenv("CONFIRM_TIMEOUT", "20s")
	t.Setenv("RISK_DECAY", "0.9")

	cfg := validConfig()
	if cfg.EngineConfig.DrawdownLimit != 55.5 {
		t.Errorf("DrawdownLimit = %f", cfg.EngineConfig.DrawdownLimit)
	}
	if len(cfg.EngineConfig.Instruments) != 2 || cfg.EngineConfig.Instruments[1] != "1HZ100V" {
		t.Errorf("Instruments = %v", cfg.EngineConfig.Instruments)
	}
	if cfg.ConfirmConfig.Timeout != 20*time.Second {
		t.Errorf("confirm timeout = %s", cfg.ConfirmConfig.Timeout)
	}
	if cfg.RiskConfig.Decay != 0.9 {
		t.Errorf("risk decay = %f", cfg.RiskConfig.Decay)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero drawdown limit", func(c *Config) { c.EngineConfig.DrawdownLimit = -1 }},
		{"decay above one", func(c *Config) { c.RiskConfig.Decay = 1.5 }},
		{"floor above one", func(c *Config) { c.RiskConfig.Floor = 1.2 }},
		{"inverted alpha range", func(c *Config) { c.ParamsConfig.AlphaMin = 3; c.ParamsConfig.AlphaMax = 1 }},
		{"tick beyond timeout", func(c *Config) { c.ConfirmConfig.Tick = time.Minute }},
		{"inverted daily target", func(c *Config) { c.EngineConfig.DailyTargetMin = 0.06 }},
		{"stake cap above one", func(c *Config) { c.ParamsConfig.StakeCapFraction = 1.5 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "decter", SSLMode: "disable"}
	want := "postgres://u:p@db:5432/decter?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}
