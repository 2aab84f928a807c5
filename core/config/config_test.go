package config

import (
	"strings"
	"testing"
)

func baseConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "test-token"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := baseConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want longpoll", cfg.Telegram.RunMode)
	}
	if cfg.Bot.CancelToken != "/cancelar" {
		t.Fatalf("cancel token = %q, want /cancelar", cfg.Bot.CancelToken)
	}
	if cfg.Bot.ProductsPerPage != 8 || cfg.Bot.ButtonsPerRow != 3 {
		t.Fatalf("paging defaults = %d/%d, want 8/3", cfg.Bot.ProductsPerPage, cfg.Bot.ButtonsPerRow)
	}
	if cfg.Database.SSLMode != "disable" || cfg.Database.MaxConnections != 10 {
		t.Fatalf("db defaults = %q/%d", cfg.Database.SSLMode, cfg.Database.MaxConnections)
	}
}

func TestNormalizeRequiresToken(t *testing.T) {
	cfg := &Config{}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestNormalizeWebhookRequiresEndpoint(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.RunMode = RunModeWebhook
	err := Normalize(cfg)
	if err == nil || !strings.Contains(err.Error(), "webhook.url") {
		t.Fatalf("err = %v, want webhook.url requirement", err)
	}

	cfg.Webhook = WebhookConfig{URL: "https://bot.example/hook", Listen: "0.0.0.0", Port: 8443}
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
}

func TestNormalizeAcceptsPollingAlias(t *testing.T) {
	cfg := baseConfig()
	cfg.Telegram.RunMode = "polling"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run mode = %q, want longpoll", cfg.Telegram.RunMode)
	}
}

func TestNormalizeRedisTTLDefault(t *testing.T) {
	cfg := baseConfig()
	cfg.Redis.Addr = "localhost:6379"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Redis.SessionTTLMinutes != 15 {
		t.Fatalf("session ttl = %d, want 15", cfg.Redis.SessionTTLMinutes)
	}
}

func TestNormalizeCustomCancelToken(t *testing.T) {
	cfg := baseConfig()
	cfg.Bot.CancelToken = "  /salir  "
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Bot.CancelToken != "/salir" {
		t.Fatalf("cancel token = %q, want /salir", cfg.Bot.CancelToken)
	}
}

func TestNormalizeRejectsBadRateLimitExclusion(t *testing.T) {
	cfg := baseConfig()
	cfg.RateLimit.ExcludeUpdates = []string{"bogus"}
	if err := Normalize(cfg); err == nil {
		t.Fatal("expected error for invalid exclusion")
	}
}
