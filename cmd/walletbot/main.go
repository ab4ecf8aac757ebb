package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/MarkoPoloResearchLab/walletbot/internal/botconfig"
	"github.com/MarkoPoloResearchLab/walletbot/internal/chatapi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagTelegramToken    = "telegram-token"
	flagHTTPListenAddr   = "http-listen-addr"
	flagAllowedOrigins   = "allowed-origins"
	flagJWTSigningKey    = "jwt-signing-key"
	flagJWTIssuer        = "jwt-issuer"
	flagTokenLifetime    = "token-lifetime"
	flagLedgerBackend    = "ledger-backend"
	flagXRPLRPCURL       = "xrpl-rpc-url"
	flagFaucetURL        = "faucet-url"
	flagLedgerTimeout    = "ledger-timeout"
	flagDatabaseURL      = "database-url"
	flagWalletStore      = "wallet-store"
	flagLedgerStore      = "ledger-store"
	flagFaucetGrantDrops = "faucet-grant-drops"
	flagQRCodeSize       = "qr-code-size"
	flagIdleTimeout      = "idle-timeout"
	flagSweepInterval    = "sweep-interval"
	flagUser             = "user"
	envPrefix            = "WALLETBOT"
)

var configFlags = []string{
	flagTelegramToken,
	flagHTTPListenAddr,
	flagAllowedOrigins,
	flagJWTSigningKey,
	flagJWTIssuer,
	flagTokenLifetime,
	flagLedgerBackend,
	flagXRPLRPCURL,
	flagFaucetURL,
	flagLedgerTimeout,
	flagDatabaseURL,
	flagWalletStore,
	flagLedgerStore,
	flagFaucetGrantDrops,
	flagQRCodeSize,
	flagIdleTimeout,
	flagSweepInterval,
}

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "walletbot: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := botconfig.Config{}
	cmd := &cobra.Command{
		Use:           "walletbot",
		Short:         "Chat wallet bot for the XRP Ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, &cfg); err != nil {
				return err
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagTelegramToken, "", "Telegram bot token (enables the Telegram transport)")
	flags.String(flagHTTPListenAddr, "", "HTTP listen address (enables the HTTP transport)")
	flags.String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	flags.String(flagJWTSigningKey, "", "HS256 key for HTTP bearer tokens")
	flags.String(flagJWTIssuer, "", "expected JWT issuer")
	flags.Duration(flagTokenLifetime, 0, "lifetime of tokens minted by the token command")
	flags.String(flagLedgerBackend, botconfig.LedgerBackendXRPL, "ledger backend: xrpl or custody")
	flags.String(flagXRPLRPCURL, "", "rippled JSON-RPC endpoint")
	flags.String(flagFaucetURL, "", "testnet faucet endpoint")
	flags.Duration(flagLedgerTimeout, 0, "timeout for each ledger call (e.g. 15s)")
	flags.String(flagDatabaseURL, "", "database URL for the custody ledger and persistent wallets (postgres:// or sqlite://)")
	flags.String(flagWalletStore, botconfig.WalletStoreMemory, "wallet registry: memory or database")
	flags.String(flagLedgerStore, botconfig.LedgerStoreGORM, "custody ledger store: gorm or pgx (pgx requires postgres)")
	flags.Int64(flagFaucetGrantDrops, 0, "drops granted to new custody wallets")
	flags.Int(flagQRCodeSize, 0, "edge length of address QR codes in pixels")
	flags.Duration(flagIdleTimeout, 0, "reset users idle in a flow for this long to the menu (0 disables)")
	flags.Duration(flagSweepInterval, 0, "how often idle sessions are swept")

	cmd.AddCommand(newTokenCommand(&cfg))
	return cmd
}

func newTokenCommand(cfg *botconfig.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP transport",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := cmd.Flags().GetString(flagUser)
			if err != nil {
				return err
			}
			lifetime := cfg.TokenLifetime
			if lifetime <= 0 {
				lifetime = 24 * time.Hour
			}
			token, err := chatapi.IssueToken(userID, chatapi.TokenConfig{
				SigningKey: []byte(cfg.JWTSigningKey),
				Issuer:     defaultIssuer(cfg.JWTIssuer),
				Expiry:     lifetime,
			}, time.Now().UTC())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().String(flagUser, "", "user id to embed as the token subject (required)")
	_ = cmd.MarkFlagRequired(flagUser)
	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *botconfig.Config) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, flagName := range configFlags {
		if err := v.BindPFlag(flagName, cmd.Flags().Lookup(flagName)); err != nil {
			return err
		}
	}

	cfg.TelegramToken = strings.TrimSpace(v.GetString(flagTelegramToken))
	cfg.HTTPListenAddr = strings.TrimSpace(v.GetString(flagHTTPListenAddr))
	cfg.AllowedOrigins = botconfig.ParseAllowedOrigins(v.GetString(flagAllowedOrigins))
	cfg.JWTSigningKey = v.GetString(flagJWTSigningKey)
	cfg.JWTIssuer = strings.TrimSpace(v.GetString(flagJWTIssuer))
	cfg.TokenLifetime = v.GetDuration(flagTokenLifetime)
	cfg.LedgerBackend = strings.TrimSpace(v.GetString(flagLedgerBackend))
	cfg.XRPLRPCURL = strings.TrimSpace(v.GetString(flagXRPLRPCURL))
	cfg.FaucetURL = strings.TrimSpace(v.GetString(flagFaucetURL))
	cfg.LedgerTimeout = v.GetDuration(flagLedgerTimeout)
	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	cfg.WalletStore = strings.TrimSpace(v.GetString(flagWalletStore))
	cfg.LedgerStore = strings.TrimSpace(v.GetString(flagLedgerStore))
	cfg.FaucetGrantDrops = v.GetInt64(flagFaucetGrantDrops)
	cfg.QRCodeSize = v.GetInt(flagQRCodeSize)
	cfg.IdleTimeout = v.GetDuration(flagIdleTimeout)
	cfg.SweepInterval = v.GetDuration(flagSweepInterval)
	return nil
}

func defaultIssuer(issuer string) string {
	if issuer == "" {
		return botconfig.DefaultJWTIssuer
	}
	return issuer
}
