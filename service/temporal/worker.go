package temporal

import (
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/gsolbridge/gsolbridge/service/bridgestate"
	"github.com/gsolbridge/gsolbridge/service/metrics"
	"github.com/gsolbridge/gsolbridge/service/solana"
	"github.com/gsolbridge/gsolbridge/service/withdraw"
)

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	TemporalHost      string
	TemporalNamespace string
	TaskQueue         string

	Engine        *bridgestate.Engine
	Discoverer    *solana.Discoverer
	RangeResolver *solana.RangeResolver
	Classifier    *solana.Classifier
	Minter        *solana.Minter
	Withdraw      *withdraw.Engine
	Metrics       *metrics.Metrics // Optional: if nil, no metrics will be recorded
	Logger        *slog.Logger
}

// Worker wraps a Temporal worker and provides lifecycle management.
type Worker struct {
	client client.Client
	worker worker.Worker
	logger *slog.Logger
}

// NewWorker creates and configures a new Temporal worker. The worker
// processes the bridge's four periodic-task workflows plus the
// withdrawal/get-coupon workflows, all registered on the same task queue.
func NewWorker(config WorkerConfig) (*Worker, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	logger := config.Logger.With("component", "temporal_worker")

	logger.Info("creating temporal worker",
		"host", config.TemporalHost,
		"namespace", config.TemporalNamespace,
		"task_queue", config.TaskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  config.TemporalHost,
		Namespace: config.TemporalNamespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal: %w", err)
	}

	w := worker.New(c, config.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     10,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	w.RegisterWorkflow(GetLatestSignatureWorkflow)
	w.RegisterWorkflow(ScrapSignatureRangeWorkflow)
	w.RegisterWorkflow(ScrapSignaturesWorkflow)
	w.RegisterWorkflow(MintGSolWorkflow)
	w.RegisterWorkflow(WithdrawWorkflow)
	w.RegisterWorkflow(GetCouponWorkflow)
	logger.Info("registered workflows", "names", []string{
		"GetLatestSignatureWorkflow", "ScrapSignatureRangeWorkflow",
		"ScrapSignaturesWorkflow", "MintGSolWorkflow",
		"WithdrawWorkflow", "GetCouponWorkflow",
	})

	activities := NewActivities(
		config.Engine,
		config.Discoverer,
		config.RangeResolver,
		config.Classifier,
		config.Minter,
		config.Withdraw,
		config.Metrics,
		logger,
	)
	a = activities

	w.RegisterActivity(activities.DiscoverSignatures)
	w.RegisterActivity(activities.ResolveRanges)
	w.RegisterActivity(activities.ClassifySignatures)
	w.RegisterActivity(activities.MintAccepted)
	w.RegisterActivity(activities.Withdraw)
	w.RegisterActivity(activities.GetCoupon)

	logger.Info("registered activities", "names", []string{
		"DiscoverSignatures", "ResolveRanges", "ClassifySignatures",
		"MintAccepted", "Withdraw", "GetCoupon",
	})

	return &Worker{
		client: c,
		worker: w,
		logger: logger,
	}, nil
}

// Start begins processing workflows and activities.
// This method blocks until Stop is called or an error occurs.
func (w *Worker) Start() error {
	w.logger.Info("starting temporal worker")
	err := w.worker.Run(worker.InterruptCh())
	if err != nil {
		w.logger.Error("worker stopped with error", "error", err)
		return fmt.Errorf("worker stopped with error: %w", err)
	}
	w.logger.Info("worker stopped gracefully")
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.logger.Info("stopping temporal worker")
	w.worker.Stop()
	w.client.Close()
	w.logger.Info("temporal worker stopped")
}
