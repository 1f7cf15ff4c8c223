package bridgestate

import (
	"testing"

	"github.com/gsolbridge/gsolbridge/service/eventlog"
)

// TestConfig returns a Config with every required field populated, for
// tests that only care about state transitions rather than config
// validation.
func TestConfig() Config {
	return Config{
		SolanaRPCURL:            "https://api.devnet.solana.com",
		SolanaContractAddress:   "11111111111111111111111111111112",
		SolanaInitialSignature:  "genesis-sig",
		EcdsaKeyName:            "test_key",
		MinimumWithdrawalAmount: 1,
	}
}

// NewTestEngine returns an Engine backed by a fresh MemoryLog, for tests
// that exercise bridgestate transitions without a real database.
func NewTestEngine(t *testing.T) (*Engine, *eventlog.MemoryLog) {
	t.Helper()
	log := eventlog.NewMemoryLog()
	return NewEngine(log, TestConfig()), log
}
