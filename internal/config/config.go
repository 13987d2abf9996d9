package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	OpsAddress           string
	OpsTokenHash         string
	DatabaseURI          string
	PayoutGatewayAddress string
	PayoutAPIKey         string
	PayoutTimeout        time.Duration
	SupportedCurrencies  []string
	MinWithdrawal        decimal.Decimal
	MaxWithdrawal        decimal.Decimal
	PollInterval         time.Duration
	WorkerPoolSize       int
	BatchSize            int
	StaleProcessingAfter time.Duration
	ShutdownTimeout      time.Duration
	LogLevel             string
}

const (
	defaultOpsAddress           = ":8081"
	defaultPayoutTimeout        = 15 * time.Second
	defaultCurrencies           = "USD,XLM"
	defaultMinWithdrawal        = "5"
	defaultMaxWithdrawal        = "500"
	defaultPollInterval         = 3 * time.Second
	defaultWorkerPoolSize       = 4
	defaultBatchSize            = 32
	defaultStaleProcessingAfter = 5 * time.Minute
	defaultShutdownTimeout      = 2*defaultPayoutTimeout + 5*time.Second
	defaultLogLevel             = "info"
)

// Load parses configuration from flags and environment variables.
func Load() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		OpsAddress:           getString(lookup, "OPS_ADDRESS", defaultOpsAddress),
		OpsTokenHash:         getString(lookup, "OPS_TOKEN_HASH", ""),
		DatabaseURI:          getString(lookup, "DATABASE_URI", ""),
		PayoutGatewayAddress: getString(lookup, "PAYOUT_GATEWAY_ADDRESS", ""),
		PayoutAPIKey:         getString(lookup, "PAYOUT_API_KEY", ""),
		PayoutTimeout:        getDuration(lookup, "PAYOUT_TIMEOUT", defaultPayoutTimeout),
		PollInterval:         getDuration(lookup, "POLL_INTERVAL", defaultPollInterval),
		WorkerPoolSize:       getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
		BatchSize:            getInt(lookup, "POLL_BATCH_SIZE", defaultBatchSize),
		StaleProcessingAfter: getDuration(lookup, "STALE_PROCESSING_AFTER", defaultStaleProcessingAfter),
		ShutdownTimeout:      getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		LogLevel:             getString(lookup, "LOG_LEVEL", defaultLogLevel),
	}

	// The key file replaces the env key but still yields to --payout-key.
	if keyFile, ok := lookup("PAYOUT_API_KEY_FILE"); ok && keyFile != "" {
		content, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read payout api key file: %w", err)
		}
		cfg.PayoutAPIKey = strings.TrimSpace(string(content))
	}

	fs := flag.NewFlagSet("payledger", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		payoutTimeoutStr   = cfg.PayoutTimeout.String()
		pollIntervalStr    = cfg.PollInterval.String()
		staleAfterStr      = cfg.StaleProcessingAfter.String()
		shutdownTimeoutStr = cfg.ShutdownTimeout.String()
		currenciesStr      = getString(lookup, "SUPPORTED_CURRENCIES", defaultCurrencies)
		minWithdrawalStr   = getString(lookup, "MIN_WITHDRAWAL", defaultMinWithdrawal)
		maxWithdrawalStr   = getString(lookup, "MAX_WITHDRAWAL", defaultMaxWithdrawal)
	)

	fs.StringVar(&cfg.OpsAddress, "a", cfg.OpsAddress, "Operations HTTP listen address")
	fs.StringVar(&cfg.OpsTokenHash, "ops-token-hash", cfg.OpsTokenHash, "Bcrypt hash of the operator bearer token")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.PayoutGatewayAddress, "p", cfg.PayoutGatewayAddress, "Payout gateway base URL")
	fs.StringVar(&cfg.PayoutAPIKey, "payout-key", cfg.PayoutAPIKey, "Payout gateway API key")
	fs.StringVar(&payoutTimeoutStr, "payout-timeout", payoutTimeoutStr, "Timeout of a single payout gateway call")
	fs.StringVar(&currenciesStr, "currencies", currenciesStr, "Comma separated list of supported currencies")
	fs.StringVar(&minWithdrawalStr, "min-withdrawal", minWithdrawalStr, "Minimum withdrawal amount")
	fs.StringVar(&maxWithdrawalStr, "max-withdrawal", maxWithdrawalStr, "Maximum withdrawal amount")
	fs.StringVar(&pollIntervalStr, "poll-interval", pollIntervalStr, "Interval between withdrawal polls")
	fs.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent withdrawal workers")
	fs.IntVar(&cfg.BatchSize, "poll-batch", cfg.BatchSize, "Maximum withdrawals per polling batch")
	fs.StringVar(&staleAfterStr, "stale-after", staleAfterStr, "Age after which a PROCESSING withdrawal is reconciled")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.PayoutTimeout, err = time.ParseDuration(payoutTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid payout timeout: %w", err)
	}

	if cfg.PollInterval, err = time.ParseDuration(pollIntervalStr); err != nil {
		return nil, fmt.Errorf("invalid poll interval: %w", err)
	}

	if cfg.StaleProcessingAfter, err = time.ParseDuration(staleAfterStr); err != nil {
		return nil, fmt.Errorf("invalid stale processing age: %w", err)
	}

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if cfg.MinWithdrawal, err = decimal.NewFromString(minWithdrawalStr); err != nil {
		return nil, fmt.Errorf("invalid minimum withdrawal: %w", err)
	}

	if cfg.MaxWithdrawal, err = decimal.NewFromString(maxWithdrawalStr); err != nil {
		return nil, fmt.Errorf("invalid maximum withdrawal: %w", err)
	}

	cfg.SupportedCurrencies = parseCurrencies(currenciesStr)

	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	if cfg.PayoutTimeout <= 0 {
		cfg.PayoutTimeout = defaultPayoutTimeout
	}

	if cfg.StaleProcessingAfter <= 0 {
		cfg.StaleProcessingAfter = defaultStaleProcessingAfter
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if len(cfg.SupportedCurrencies) == 0 {
		return nil, fmt.Errorf("at least one supported currency must be provided")
	}

	if !cfg.MinWithdrawal.IsPositive() || cfg.MinWithdrawal.GreaterThan(cfg.MaxWithdrawal) {
		return nil, fmt.Errorf("withdrawal limits must satisfy 0 < min <= max, got %s..%s", cfg.MinWithdrawal, cfg.MaxWithdrawal)
	}

	if cfg.DatabaseURI == "" {
		return nil, fmt.Errorf("database URI must be provided")
	}

	if cfg.PayoutGatewayAddress == "" {
		return nil, fmt.Errorf("payout gateway address must be provided")
	}

	return cfg, nil
}

// SupportsCurrency reports whether code is in the whitelist.
func (c *Config) SupportsCurrency(code string) bool {
	for _, cur := range c.SupportedCurrencies {
		if cur == code {
			return true
		}
	}
	return false
}

func parseCurrencies(raw string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(raw, ",") {
		code := strings.ToUpper(strings.TrimSpace(part))
		if code == "" {
			continue
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
