package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"land-assessment-system/activities"
	"land-assessment-system/backend"
	"land-assessment-system/codec"
	"land-assessment-system/config"
	"land-assessment-system/gateway"
	"land-assessment-system/logging"
	"land-assessment-system/workflows"
)

// Version information - update this when deploying new versions
const (
	WorkerVersion = "1.0.0"
	BuildID       = "1.0.0"
)

var configPath string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the land assessment Temporal worker",
	Long: `Worker polls the configured task queue and executes the land assessment
workflow together with its backend and card payment activities.`,
	SilenceUsage: true,
	RunE:         runWorker,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	keyBytes, generated, err := codec.LoadOrGenerateKey(cfg.Temporal.EncryptionKey)
	if err != nil {
		return fmt.Errorf("invalid encryption key: %w", err)
	}
	if generated {
		logger.Warn("Using generated encryption key, set ENCRYPTION_KEY to share it with the starter",
			zap.String("key", hex.EncodeToString(keyBytes)))
	}

	// Create data converter with encryption
	dataConverter, err := codec.NewEncryptionDataConverter(keyBytes)
	if err != nil {
		return fmt.Errorf("failed to create encryption data converter: %w", err)
	}

	c, err := client.Dial(client.Options{
		HostPort:      cfg.Temporal.Address,
		Namespace:     cfg.Temporal.Namespace,
		DataConverter: dataConverter,
		Logger:        logging.NewTemporalLogger(logger),
	})
	if err != nil {
		return fmt.Errorf("unable to create Temporal client: %w", err)
	}
	defer c.Close()

	backendClient, err := backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.SessionCookie,
		backend.WithTimeout(config.Duration(cfg.Backend.Timeout)),
		backend.WithLogger(logger.Named("backend")))
	if err != nil {
		return fmt.Errorf("failed to create backend client: %w", err)
	}

	cardGateway, err := gateway.NewStripe(cfg.Stripe.PublishableKey, cfg.Stripe.APIURL)
	if err != nil {
		return fmt.Errorf("failed to create payment gateway: %w", err)
	}

	buildID := os.Getenv("BUILD_ID")
	if buildID == "" {
		buildID = BuildID
	}

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{
		BuildID:                                buildID,
		MaxConcurrentActivityExecutionSize:     100,
		MaxConcurrentWorkflowTaskExecutionSize: 50,
	})

	w.RegisterWorkflow(workflows.LandAssessmentWorkflow)

	landActivities := activities.NewActivities(backendClient)
	w.RegisterActivity(landActivities.CreateLandRecord)

	paymentActivities := activities.NewPaymentActivities(backendClient, cardGateway)
	w.RegisterActivity(paymentActivities.CreatePaymentIntent)
	w.RegisterActivity(paymentActivities.ConfirmCardPayment)
	w.RegisterActivity(paymentActivities.ConfirmPayment)

	logger.Info("Starting Temporal worker",
		zap.String("worker_version", WorkerVersion),
		zap.String("build_id", buildID),
		zap.String("temporal_address", cfg.Temporal.Address),
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.String("backend_url", cfg.Backend.BaseURL),
		zap.Bool("stripe_api_override", cfg.Stripe.APIURL != ""))

	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Unable to start worker", zap.Error(err))
		return err
	}
	return nil
}
