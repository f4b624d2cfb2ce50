package vault

import (
	"context"
	"testing"

	"decter-engine/config"
)

func TestDisabledVaultUsesMemoryStore(t *testing.T) {
	c, err := NewClient(config.VaultConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := c.GetCredentials(context.Background()); err == nil {
		t.Fatal("expected error before credentials are stored")
	}

	creds := Credentials{APIToken: "tok-123", AppID: "1089", Currency: "USD"}
	if err := c.StoreCredentials(context.Background(), creds); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, err := c.GetCredentials(context.Background())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.APIToken != "tok-123" || got.AppID != "1089" {
		t.Fatalf("got %+v, want stored credentials", got)
	}

	c.ClearCache()
	if _, err := c.GetCredentials(context.Background()); err == nil {
		t.Fatal("expected error after cache cleared with vault disabled")
	}
}

func TestHealthNoopWhenDisabled(t *testing.T) {
	c, err := NewClient(config.VaultConfig{Enabled: false})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("health: %v", err)
	}
}
