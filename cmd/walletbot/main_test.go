package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/MarkoPoloResearchLab/walletbot/internal/botconfig"
	"github.com/MarkoPoloResearchLab/walletbot/internal/chatapi"
)

func TestTokenCommandMintsVerifiableToken(test *testing.T) {
	signingKey := "0123456789abcdef0123"
	cmd := newRootCommand()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetArgs([]string{"token", "--user", "42", "--" + flagJWTSigningKey, signingKey})
	if err := cmd.Execute(); err != nil {
		test.Fatalf("execute: %v", err)
	}
	claims, err := chatapi.VerifyToken(strings.TrimSpace(output.String()), chatapi.TokenConfig{
		SigningKey: []byte(signingKey),
		Issuer:     botconfig.DefaultJWTIssuer,
	})
	if err != nil {
		test.Fatalf("verify minted token: %v", err)
	}
	if claims.UserID != "42" {
		test.Fatalf("expected subject 42, got %q", claims.UserID)
	}
}

func TestRootCommandRequiresTransport(test *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--" + flagLedgerBackend, botconfig.LedgerBackendXRPL})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "transport") {
		test.Fatalf("expected transport error, got %v", err)
	}
}

func TestLoadConfigReadsEnvironment(test *testing.T) {
	test.Setenv("WALLETBOT_TELEGRAM_TOKEN", "123:abc")
	test.Setenv("WALLETBOT_IDLE_TIMEOUT", "10m")
	test.Setenv("WALLETBOT_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	cmd := newRootCommand()
	if err := cmd.ParseFlags([]string{"--" + flagWalletStore, botconfig.WalletStoreDatabase}); err != nil {
		test.Fatalf("parse flags: %v", err)
	}
	cfg := botconfig.Config{}
	if err := loadConfig(cmd, &cfg); err != nil {
		test.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("validate: %v", err)
	}
	if cfg.TelegramToken != "123:abc" || cfg.IdleTimeout.Minutes() != 10 || len(cfg.AllowedOrigins) != 2 {
		test.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.WalletStore != botconfig.WalletStoreDatabase || !cfg.NeedsDatabase() {
		test.Fatalf("flag must select the database wallet store")
	}
}
