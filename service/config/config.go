// Package config loads and validates the bridge's runtime configuration.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
//
// The Solana/ECDSA/withdrawal fields mirror the init/upgrade configuration
// object described in the spec: SolanaRPCURL, SolanaContractAddress,
// SolanaInitialSignature, EcdsaKeyName, MinimumWithdrawalAmount.
type Config struct {
	// Server configuration
	ServerAddr  string
	MetricsAddr string
	LogLevel    string

	// Event log configuration
	DatabaseURL string

	// NATS configuration (lifecycle event publishing)
	NATSURL string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string

	// Solana configuration
	SolanaRPCURL           string
	SolanaContractAddress  string
	SolanaInitialSignature string

	// Destination ledger configuration
	DestinationLedgerID string

	// Threshold-signing facade configuration
	EcdsaKeyName string

	// Withdrawal policy
	MinimumWithdrawalAmount uint64

	// Scraper tuning
	SignatureDiscoveryLimit int
	RangeBatchLimit         int
	TxFetchBatchLimit       int
	MaxRetries              uint32
	MintBatch               int

	// DeferWatermarkUntilRangesResolved changes §4.C/§9's watermark-advancement
	// policy: when true, a full page of signatures is recorded as a pending
	// range and the watermark is left where it is. No code advances it when
	// that range resolves; it moves again only on a later short page.
	// Resolves the first Open Question in spec.md §9.
	DeferWatermarkUntilRangesResolved bool

	// Polling / scheduling
	GetLatestSignatureInterval  time.Duration
	ScrapSignatureRangeInterval time.Duration
	ScrapSignaturesInterval     time.Duration
	MintGSolInterval            time.Duration
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.MetricsAddr = getEnvOrDefault("METRICS_ADDR", ":9091")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "gsolbridge")

	cfg.SolanaRPCURL = os.Getenv("SOLANA_RPC_URL")
	if cfg.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SOLANA_RPC_URL is required"))
	}

	cfg.SolanaContractAddress = os.Getenv("SOLANA_CONTRACT_ADDRESS")
	if cfg.SolanaContractAddress == "" {
		errs = append(errs, fmt.Errorf("SOLANA_CONTRACT_ADDRESS is required"))
	}

	cfg.SolanaInitialSignature = os.Getenv("SOLANA_INITIAL_SIGNATURE")
	if cfg.SolanaInitialSignature == "" {
		errs = append(errs, fmt.Errorf("SOLANA_INITIAL_SIGNATURE is required"))
	}

	// Deliberately has no hardcoded default: a staging canister/ledger id baked
	// into the binary is the second Open Question in spec.md §9, treated there
	// as a bug. It must always come from configuration.
	cfg.DestinationLedgerID = os.Getenv("DESTINATION_LEDGER_ID")
	if cfg.DestinationLedgerID == "" {
		errs = append(errs, fmt.Errorf("DESTINATION_LEDGER_ID is required"))
	}

	cfg.EcdsaKeyName = os.Getenv("ECDSA_KEY_NAME")
	if cfg.EcdsaKeyName == "" {
		errs = append(errs, fmt.Errorf("ECDSA_KEY_NAME is required"))
	}

	minWithdrawal, err := parseUint("MINIMUM_WITHDRAWAL_AMOUNT", 1)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MinimumWithdrawalAmount = minWithdrawal
	}

	limit, err := parseInt("SIGNATURE_DISCOVERY_LIMIT", 1000)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SignatureDiscoveryLimit = limit
	}

	rangeBatch, err := parseInt("RANGE_BATCH_LIMIT", 1000)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RangeBatchLimit = rangeBatch
	}

	txBatch, err := parseInt("TX_FETCH_BATCH_LIMIT", 25)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.TxFetchBatchLimit = txBatch
	}

	maxRetries, err := parseInt("MAX_RETRIES", 5)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MaxRetries = uint32(maxRetries)
	}

	mintBatch, err := parseInt("MINT_BATCH", 10)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MintBatch = mintBatch
	}

	cfg.DeferWatermarkUntilRangesResolved = getEnvOrDefault("DEFER_WATERMARK_UNTIL_RANGES_RESOLVED", "false") == "true"

	for key, dst := range map[string]*time.Duration{
		"GET_LATEST_SIGNATURE_INTERVAL":  &cfg.GetLatestSignatureInterval,
		"SCRAP_SIGNATURE_RANGE_INTERVAL": &cfg.ScrapSignatureRangeInterval,
		"SCRAP_SIGNATURES_INTERVAL":      &cfg.ScrapSignaturesInterval,
		"MINT_GSOL_INTERVAL":             &cfg.MintGSolInterval,
	} {
		d, err := parseDuration(key, "15s")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		*dst = d
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks that every required field is set and that
// MinimumWithdrawalAmount is positive, reporting all failures in one error.
// Each field is checked on its own; no rule relates one field to another.
func (c *Config) Validate() error {
	var errs []error

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}
	if c.SolanaContractAddress == "" {
		errs = append(errs, fmt.Errorf("SolanaContractAddress is required"))
	}
	if c.SolanaInitialSignature == "" {
		errs = append(errs, fmt.Errorf("SolanaInitialSignature is required"))
	}
	if c.EcdsaKeyName == "" {
		errs = append(errs, fmt.Errorf("EcdsaKeyName is required"))
	}
	if c.DestinationLedgerID == "" {
		errs = append(errs, fmt.Errorf("DestinationLedgerID is required"))
	}
	if c.MinimumWithdrawalAmount == 0 {
		errs = append(errs, fmt.Errorf("MinimumWithdrawalAmount must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	var result int
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

func parseUint(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	var result uint64
	if _, err := fmt.Sscanf(value, "%d", &result); err != nil {
		return 0, fmt.Errorf("%s: invalid unsigned integer %q: %w", key, value, err)
	}
	return result, nil
}
