package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"decter-engine/internal/params"
	"decter-engine/internal/state"
)

// NotificationType represents the type of notification
type NotificationType string

const (
	NotifyProposal   NotificationType = "proposal"
	NotifyCountdown  NotificationType = "countdown"
	NotifyModeSwitch NotificationType = "mode_switch"
	NotifyRisk       NotificationType = "risk"
	NotifyRecovery   NotificationType = "recovery"
	NotifyHalt       NotificationType = "halt"
	NotifyTrade      NotificationType = "trade"
	NotifyError      NotificationType = "error"
	NotifyInfo       NotificationType = "info"
)

// Notification represents a notification message
type Notification struct {
	Type       NotificationType
	Title      string
	Message    string
	Instrument string
	PnL        float64
	Timestamp  time.Time
	Extra      map[string]interface{}
}

// Notifier interface for different notification providers
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager manages multiple notification providers
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates a new notification manager
func NewManager(enabled bool) *Manager {
	return &Manager{
		notifiers: make([]Notifier, 0),
		enabled:   enabled,
	}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if !m.enabled {
		return nil
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendProposal presents a parameter proposal for operator confirmation.
// Implements the confirmation channel used by the gate.
func (m *Manager) SendProposal(p *params.Proposal, timeout time.Duration) error {
	msg := fmt.Sprintf(
		"Instrument: %s\nStake: %.2f | Growth: %.0f%% | TP: %.2f%%\nFrequency: %s\n%s",
		p.InstrumentID, p.Stake, p.GrowthRate*100, p.TakeProfit*100, p.Frequency, p.Rationale)
	if p.Forecast != nil {
		f := p.Forecast
		msg += fmt.Sprintf(
			"\n\nRecovery forecast:\nLoss to recover: %.2f (target %.2f)\nTrades: %d-%d | Time: %s\nSuccess odds: %.0f%% | Risk: %s",
			f.LossToRecover, f.RecoveryTarget, f.EstimatedTradesMin, f.EstimatedTradesMax,
			f.TimeEstimate, f.SuccessProbability*100, f.RiskLevel)
	}
	msg += fmt.Sprintf("\n\nAuto-accept in %s. Reply via /api/proposal/%s/respond", timeout, p.ID)

	return m.Send(&Notification{
		Type:       NotifyProposal,
		Title:      fmt.Sprintf("📋 Parameter Proposal: %s", p.InstrumentID),
		Message:    msg,
		Instrument: p.InstrumentID,
		Timestamp:  time.Now(),
		Extra:      map[string]interface{}{"proposal_id": p.ID},
	})
}

// SendCountdown reminds the operator a proposal is about to auto-accept.
func (m *Manager) SendCountdown(p *params.Proposal, remaining time.Duration) error {
	return m.Send(&Notification{
		Type:       NotifyCountdown,
		Title:      fmt.Sprintf("⏳ Awaiting confirmation: %s", p.InstrumentID),
		Message:    fmt.Sprintf("Proposal %s auto-accepts in %s", p.ID, remaining),
		Instrument: p.InstrumentID,
		Timestamp:  time.Now(),
	})
}

// SendModeSwitch announces a transition between trading modes.
func (m *Manager) SendModeSwitch(from, to state.Mode, instrument string, cumulativeLoss float64) error {
	emoji := "🔄"
	if to == state.ModeRecovery {
		emoji = "🛟"
	}
	return m.Send(&Notification{
		Type:       NotifyModeSwitch,
		Title:      fmt.Sprintf("%s Mode switch: %s → %s", emoji, from, to),
		Message:    fmt.Sprintf("Now trading %s\nCumulative loss at switch: %.2f", instrument, cumulativeLoss),
		Instrument: instrument,
		Timestamp:  time.Now(),
	})
}

// SendRiskReduction announces a recovery stake reduction.
func (m *Manager) SendRiskReduction(failures int, factor, stake float64) error {
	return m.Send(&Notification{
		Type:      NotifyRisk,
		Title:     "📉 Recovery stake reduced",
		Message:   fmt.Sprintf("Failed recovery trades: %d\nReduction factor: %.2f\nNext stake: %.2f", failures, factor, stake),
		Timestamp: time.Now(),
	})
}

// SendRecoveryComplete announces a successful return to continuous mode.
func (m *Manager) SendRecoveryComplete(netPL float64, trades int) error {
	return m.Send(&Notification{
		Type:      NotifyRecovery,
		Title:     "✅ Recovery complete",
		Message:   fmt.Sprintf("Net P/L back to %.2f after %d trades. Returning to continuous mode.", netPL, trades),
		PnL:       netPL,
		Timestamp: time.Now(),
	})
}

// SendEmergencyHalt announces that the guard tripped and trading stopped.
func (m *Manager) SendEmergencyHalt(reason string) error {
	return m.Send(&Notification{
		Type:      NotifyHalt,
		Title:     "🛑 EMERGENCY HALT",
		Message:   fmt.Sprintf("%s\nTrading is stopped until an operator resumes the engine.", reason),
		Timestamp: time.Now(),
	})
}

// SendDailyTarget announces the session hit its profit target.
func (m *Manager) SendDailyTarget(profitPct, target float64) error {
	return m.Send(&Notification{
		Type:      NotifyInfo,
		Title:     "🎯 Daily target reached",
		Message:   fmt.Sprintf("Session up %.2f%% against a %.2f%% target. Trading paused for the day.", profitPct*100, target*100),
		Timestamp: time.Now(),
	})
}

// SendTradeClose reports a settled trade.
func (m *Manager) SendTradeClose(o state.TradeOutcome) error {
	emoji := "✅"
	if !o.Win {
		emoji = "❌"
	}
	return m.Send(&Notification{
		Type:       NotifyTrade,
		Title:      fmt.Sprintf("%s Trade closed: %s", emoji, o.InstrumentID),
		Message:    fmt.Sprintf("Stake: %.2f\nP/L: %+.2f\nBalance: %.2f", o.Stake, o.ProfitLoss, o.BalanceAfter),
		Instrument: o.InstrumentID,
		PnL:        o.ProfitLoss,
		Timestamp:  time.Now(),
	})
}

// SendError sends an error notification
func (m *Manager) SendError(title, message string) error {
	return m.Send(&Notification{
		Type:      NotifyError,
		Title:     fmt.Sprintf("⚠️ %s", title),
		Message:   message,
		Timestamp: time.Now(),
	})
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends notifications via Telegram
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram configuration
type TelegramConfig struct {
	BotToken string
	ChatID   string
	Enabled  bool
}

// NewTelegramNotifier creates a new Telegram notifier
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string {
	return "telegram"
}

func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

func (t *TelegramNotifier) Send(notification *Notification) error {
	if !t.enabled {
		return nil
	}

	message := fmt.Sprintf("*%s*\n\n%s", notification.Title, notification.Message)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	resp, err := t.client.Post(url, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}

// =============================================================================
// DISCORD NOTIFIER
// =============================================================================

// DiscordNotifier sends notifications via Discord webhook
type DiscordNotifier struct {
	webhookURL string
	enabled    bool
	client     *http.Client
}

// DiscordConfig holds Discord configuration
type DiscordConfig struct {
	WebhookURL string
	Enabled    bool
}

// NewDiscordNotifier creates a new Discord notifier
func NewDiscordNotifier(config DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: config.WebhookURL,
		enabled:    config.Enabled && config.WebhookURL != "",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string {
	return "discord"
}

func (d *DiscordNotifier) IsEnabled() bool {
	return d.enabled
}

func (d *DiscordNotifier) Send(notification *Notification) error {
	if !d.enabled {
		return nil
	}

	color := 0x00FF00 // Green
	switch {
	case notification.Type == NotifyError || notification.Type == NotifyHalt:
		color = 0xFF0000 // Red
	case notification.Type == NotifyRisk:
		color = 0xFFA500 // Orange
	case notification.Type == NotifyTrade && notification.PnL < 0:
		color = 0xFF0000 // Red
	}

	embed := map[string]interface{}{
		"title":       notification.Title,
		"description": notification.Message,
		"color":       color,
		"timestamp":   notification.Timestamp.Format(time.RFC3339),
	}

	if notification.Instrument != "" {
		fields := []map[string]interface{}{
			{"name": "Instrument", "value": notification.Instrument, "inline": true},
		}
		if notification.PnL != 0 {
			fields = append(fields, map[string]interface{}{
				"name": "P&L", "value": fmt.Sprintf("%+.2f", notification.PnL), "inline": true,
			})
		}
		embed["fields"] = fields
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}

	return nil
}
