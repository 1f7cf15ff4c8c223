package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gsolbridge/gsolbridge/service/bridgestate"
	"github.com/gsolbridge/gsolbridge/service/config"
	"github.com/gsolbridge/gsolbridge/service/eventlog"
	"github.com/gsolbridge/gsolbridge/service/ledger"
	"github.com/gsolbridge/gsolbridge/service/metrics"
	natspkg "github.com/gsolbridge/gsolbridge/service/nats"
	"github.com/gsolbridge/gsolbridge/service/signer"
	"github.com/gsolbridge/gsolbridge/service/solana"
	"github.com/gsolbridge/gsolbridge/service/withdraw"
)

// deps bundles every collaborator the CLI's subcommands are built from. Each
// subcommand only keeps the fields it needs; building them all in one place
// keeps the config->component wiring in a single spot instead of repeated
// per-command.
type deps struct {
	cfg *config.Config

	pool   *pgxpool.Pool
	log    eventlog.Log
	engine *bridgestate.Engine

	discoverer    *solana.Discoverer
	rangeResolver *solana.RangeResolver
	classifier    *solana.Classifier
	minter        *solana.Minter

	ledger   ledger.Client
	facade   *signer.Facade
	withdraw *withdraw.Engine

	metrics   *metrics.Metrics
	publisher natspkg.Publisher
}

// buildDeps loads configuration, connects to Postgres, and restores the
// bridge's aggregate state from the event log. publish controls whether a
// NATS publisher is wired in: read-only inspection commands skip it.
func buildDeps(ctx context.Context, logger *slog.Logger, publish bool) (*deps, error) {
	cfg := config.MustLoad()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	plog := eventlog.NewPostgresLog(pool)
	if err := plog.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure event log schema: %w", err)
	}

	bsCfg := bridgestate.Config{
		SolanaRPCURL:                      cfg.SolanaRPCURL,
		SolanaContractAddress:             cfg.SolanaContractAddress,
		SolanaInitialSignature:            cfg.SolanaInitialSignature,
		EcdsaKeyName:                      cfg.EcdsaKeyName,
		MinimumWithdrawalAmount:           cfg.MinimumWithdrawalAmount,
		DeferWatermarkUntilRangesResolved: cfg.DeferWatermarkUntilRangesResolved,
	}
	engine, err := bridgestate.Restore(ctx, plog, bsCfg)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("restore bridge state: %w", err)
	}

	metricsCollector := metrics.NewMetrics(nil)

	contractAddr, err := solanago.PublicKeyFromBase58(cfg.SolanaContractAddress)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("parse SOLANA_CONTRACT_ADDRESS: %w", err)
	}

	rpcClient := rpc.New(cfg.SolanaRPCURL)
	solClient := solana.NewClient(rpcClient, cfg.SolanaRPCURL, metricsCollector, logger)
	discoverer := solana.NewDiscoverer(solClient, contractAddr, cfg.SignatureDiscoveryLimit)
	rangeResolver := solana.NewRangeResolver(solClient, contractAddr, cfg.RangeBatchLimit, cfg.MaxRetries)
	classifier := solana.NewClassifier(solClient, contractAddr, cfg.TxFetchBatchLimit)

	lc := ledger.NewMemoryClient()
	minter := solana.NewMinter(lc, cfg.MintBatch, metricsCollector, logger)

	keyProvider, err := buildKeyProvider(cfg.EcdsaKeyName)
	if err != nil {
		pool.Close()
		return nil, err
	}
	facade := signer.NewFacade(keyProvider, cfg.EcdsaKeyName)
	withdrawEngine := withdraw.NewEngine(engine, lc, facade, logger)

	var publisher natspkg.Publisher
	if publish {
		p, err := natspkg.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("connect to NATS: %w", err)
		}
		publisher = p
		classifier.SetPublisher(publisher)
		minter.SetPublisher(publisher)
		withdrawEngine.SetPublisher(publisher)
	}

	return &deps{
		cfg:           cfg,
		pool:          pool,
		log:           plog,
		engine:        engine,
		discoverer:    discoverer,
		rangeResolver: rangeResolver,
		classifier:    classifier,
		minter:        minter,
		ledger:        lc,
		facade:        facade,
		withdraw:      withdrawEngine,
		metrics:       metricsCollector,
		publisher:     publisher,
	}, nil
}

func (d *deps) Close() {
	if d.publisher != nil {
		d.publisher.Close()
	}
	d.pool.Close()
}

// buildKeyProvider constructs the signing key backing the bridge's
// threshold-signing facade. LocalKeyProvider is a development/test
// stand-in for a real MPC custodian (see service/signer); the private key
// it holds comes from ECDSA_PRIVATE_KEY_HEX, hex-encoded secp256k1 scalar
// bytes, since no such key is part of the bridge's durable config.
func buildKeyProvider(keyName string) (signer.KeyProvider, error) {
	hexKey := os.Getenv("ECDSA_PRIVATE_KEY_HEX")
	if hexKey == "" {
		return nil, fmt.Errorf("ECDSA_PRIVATE_KEY_HEX is required")
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("ECDSA_PRIVATE_KEY_HEX: invalid hex: %w", err)
	}
	priv := secp256k1.PrivKeyFromBytes(raw)
	return signer.NewLocalKeyProvider(keyName, priv), nil
}

func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
