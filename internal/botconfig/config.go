// Package botconfig holds the runtime settings of the wallet bot.
package botconfig

import (
	"fmt"
	"strings"
	"time"
)

const (
	LedgerBackendXRPL    = "xrpl"
	LedgerBackendCustody = "custody"

	WalletStoreMemory   = "memory"
	WalletStoreDatabase = "database"

	LedgerStoreGORM = "gorm"
	LedgerStorePgx  = "pgx"

	// DefaultJWTIssuer is the issuer used when none is configured.
	DefaultJWTIssuer = "walletbot"

	defaultXRPLRPCURL       = "https://s.altnet.rippletest.net:51234"
	defaultFaucetURL        = "https://faucet.altnet.rippletest.net/accounts"
	defaultDatabaseURL      = "sqlite:///tmp/walletbot.db"
	defaultAllowedOrigin    = "http://localhost:8000"
	defaultLedgerTimeout    = 15 * time.Second
	defaultSweepInterval    = time.Minute
	defaultFaucetGrantDrops = int64(1000 * 1_000_000)
	defaultQRCodeSizePixels = 256
	minimumSigningKeyLength = 16
	defaultTokenLifetime    = 24 * time.Hour
)

// Config aggregates runtime settings for the bot.
type Config struct {
	TelegramToken    string
	HTTPListenAddr   string
	AllowedOrigins   []string
	JWTSigningKey    string
	JWTIssuer        string
	TokenLifetime    time.Duration
	LedgerBackend    string
	XRPLRPCURL       string
	FaucetURL        string
	LedgerTimeout    time.Duration
	DatabaseURL      string
	WalletStore      string
	LedgerStore      string
	FaucetGrantDrops int64
	QRCodeSize       int
	IdleTimeout      time.Duration
	SweepInterval    time.Duration
}

// Validate applies defaults and rejects inconsistent settings.
func (cfg *Config) Validate() error {
	cfg.LedgerBackend = strings.ToLower(defaultIfEmpty(cfg.LedgerBackend, LedgerBackendXRPL))
	cfg.WalletStore = strings.ToLower(defaultIfEmpty(cfg.WalletStore, WalletStoreMemory))
	cfg.LedgerStore = strings.ToLower(defaultIfEmpty(cfg.LedgerStore, LedgerStoreGORM))
	cfg.XRPLRPCURL = defaultIfEmpty(cfg.XRPLRPCURL, defaultXRPLRPCURL)
	cfg.FaucetURL = defaultIfEmpty(cfg.FaucetURL, defaultFaucetURL)
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	cfg.JWTIssuer = defaultIfEmpty(cfg.JWTIssuer, DefaultJWTIssuer)
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = defaultLedgerTimeout
	}
	if cfg.TokenLifetime <= 0 {
		cfg.TokenLifetime = defaultTokenLifetime
	}
	if cfg.FaucetGrantDrops <= 0 {
		cfg.FaucetGrantDrops = defaultFaucetGrantDrops
	}
	if cfg.QRCodeSize <= 0 {
		cfg.QRCodeSize = defaultQRCodeSizePixels
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}

	if !cfg.TelegramEnabled() && !cfg.HTTPEnabled() {
		return fmt.Errorf("at least one transport is required: set a telegram token or an http listen address")
	}
	switch cfg.LedgerBackend {
	case LedgerBackendXRPL, LedgerBackendCustody:
	default:
		return fmt.Errorf("unknown ledger backend %q", cfg.LedgerBackend)
	}
	switch cfg.WalletStore {
	case WalletStoreMemory, WalletStoreDatabase:
	default:
		return fmt.Errorf("unknown wallet store %q", cfg.WalletStore)
	}
	switch cfg.LedgerStore {
	case LedgerStoreGORM:
	case LedgerStorePgx:
		if !isPostgresURL(cfg.DatabaseURL) {
			return fmt.Errorf("ledger store %q requires a postgres database url", LedgerStorePgx)
		}
	default:
		return fmt.Errorf("unknown ledger store %q", cfg.LedgerStore)
	}
	if cfg.HTTPEnabled() && len(cfg.JWTSigningKey) < minimumSigningKeyLength {
		return fmt.Errorf("jwt signing key of at least %d bytes is required when the http transport is enabled", minimumSigningKeyLength)
	}
	if cfg.IdleTimeout < 0 {
		return fmt.Errorf("idle timeout must not be negative")
	}
	return nil
}

// TelegramEnabled reports whether the Telegram transport should run.
func (cfg *Config) TelegramEnabled() bool {
	return strings.TrimSpace(cfg.TelegramToken) != ""
}

// HTTPEnabled reports whether the HTTP transport should run.
func (cfg *Config) HTTPEnabled() bool {
	return strings.TrimSpace(cfg.HTTPListenAddr) != ""
}

// NeedsDatabase reports whether any component persists to DatabaseURL.
func (cfg *Config) NeedsDatabase() bool {
	return cfg.LedgerBackend == LedgerBackendCustody || cfg.WalletStore == WalletStoreDatabase
}

// IdleSweepEnabled reports whether idle sessions are reset to the menu.
func (cfg *Config) IdleSweepEnabled() bool {
	return cfg.IdleTimeout > 0
}

// UsesPgxPool reports whether the custody ledger runs on a dedicated pgx pool.
func (cfg *Config) UsesPgxPool() bool {
	return cfg.LedgerBackend == LedgerBackendCustody && cfg.LedgerStore == LedgerStorePgx
}

func isPostgresURL(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	return strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://")
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
