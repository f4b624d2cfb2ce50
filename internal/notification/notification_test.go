package notification

import (
	"strings"
	"testing"
	"time"

	"decter-engine/internal/forecast"
	"decter-engine/internal/params"
	"decter-engine/internal/state"
)

type capturingNotifier struct {
	sent    []*Notification
	enabled bool
}

func (c *capturingNotifier) Send(n *Notification) error {
	c.sent = append(c.sent, n)
	return nil
}

func (c *capturingNotifier) Name() string    { return "capture" }
func (c *capturingNotifier) IsEnabled() bool { return c.enabled }

func newTestManager() (*Manager, *capturingNotifier) {
	m := NewManager(true)
	c := &capturingNotifier{enabled: true}
	m.AddNotifier(c)
	return m, c
}

func TestSendProposalIncludesParameters(t *testing.T) {
	m, c := newTestManager()
	p := &params.Proposal{
		ID:           "abc",
		InstrumentID: "R_10",
		Stake:        2.0,
		GrowthRate:   0.02,
		TakeProfit:   0.015,
		Frequency:    params.FrequencyMedium,
		Rationale:    "steady series",
	}
	if err := m.SendProposal(p, 30*time.Second); err != nil {
		t.Fatalf("SendProposal: %v", err)
	}
	if len(c.sent) != 1 {
		t.Fatalf("sent %d notifications", len(c.sent))
	}
	n := c.sent[0]
	if n.Type != NotifyProposal {
		t.Errorf("type = %s", n.Type)
	}
	for _, want := range []string{"R_10", "2.00", "2%", "abc", "30s"} {
		if !strings.Contains(n.Message, want) && !strings.Contains(n.Title, want) {
			t.Errorf("notification missing %q:\n%s", want, n.Message)
		}
	}
}

func TestSendProposalIncludesForecast(t *testing.T) {
	m, c := newTestManager()
	p := &params.Proposal{
		ID:           "abc",
		InstrumentID: "R_10",
		Stake:        3.6,
		GrowthRate:   0.01,
		TakeProfit:   0.015,
		Forecast: &forecast.Forecast{
			LossToRecover:      50,
			RecoveryTarget:     60,
			EstimatedTradesMin: 100,
			EstimatedTradesMax: 180,
			SuccessProbability: 0.62,
			TimeEstimate:       90 * time.Minute,
			RiskLevel:          forecast.RiskMedium,
		},
	}
	if err := m.SendProposal(p, 30*time.Second); err != nil {
		t.Fatalf("SendProposal: %v", err)
	}
	msg := c.sent[0].Message
	for _, want := range []string{"50.00", "100-180", "62%", "MEDIUM"} {
		if !strings.Contains(msg, want) {
			t.Errorf("forecast section missing %q:\n%s", want, msg)
		}
	}
}

func TestManagerDisabledSendsNothing(t *testing.T) {
	m := NewManager(false)
	c := &capturingNotifier{enabled: true}
	m.AddNotifier(c)
	if err := m.SendError("boom", "details"); err != nil {
		t.Fatalf("SendError: %v", err)
	}
	if len(c.sent) != 0 {
		t.Errorf("disabled manager sent %d notifications", len(c.sent))
	}
}

func TestDisabledNotifierSkipped(t *testing.T) {
	m := NewManager(true)
	off := &capturingNotifier{enabled: false}
	on := &capturingNotifier{enabled: true}
	m.AddNotifier(off)
	m.AddNotifier(on)
	if err := m.SendRiskReduction(2, 0.7225, 1.4); err != nil {
		t.Fatalf("SendRiskReduction: %v", err)
	}
	if len(off.sent) != 0 || len(on.sent) != 1 {
		t.Errorf("off=%d on=%d", len(off.sent), len(on.sent))
	}
}

func TestModeSwitchMessage(t *testing.T) {
	m, c := newTestManager()
	if err := m.SendModeSwitch(state.ModeContinuous, state.ModeRecovery, "1HZ100V", 101.5); err != nil {
		t.Fatalf("SendModeSwitch: %v", err)
	}
	n := c.sent[0]
	if !strings.Contains(n.Title, "continuous") || !strings.Contains(n.Title, "recovery") {
		t.Errorf("title = %q", n.Title)
	}
	if !strings.Contains(n.Message, "101.50") {
		t.Errorf("message = %q", n.Message)
	}
}

func TestTelegramDisabledWithoutCredentials(t *testing.T) {
	n := NewTelegramNotifier(TelegramConfig{Enabled: true})
	if n.IsEnabled() {
		t.Error("telegram enabled without token and chat id")
	}
}

func TestDiscordDisabledWithoutWebhook(t *testing.T) {
	n := NewDiscordNotifier(DiscordConfig{Enabled: true})
	if n.IsEnabled() {
		t.Error("discord enabled without webhook URL")
	}
}
