package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"land-assessment-system/backend"
	"land-assessment-system/codec"
	"land-assessment-system/config"
	"land-assessment-system/geocode"
	"land-assessment-system/logging"
)

var (
	configPath string
	timeout    time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "starter",
	Short: "Pay for land assessments and inspect their workflows",
	Long: `Starter drives the land assessment workflow from the command line.

It resolves a location inside Sri Lanka, validates the land details,
pays the assessment fee through the Temporal worker and reports the outcome.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(assessCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCropsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every command needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func (a *app) dialTemporal() (client.Client, error) {
	keyBytes, generated, err := codec.LoadOrGenerateKey(a.cfg.Temporal.EncryptionKey)
	if err != nil {
		return nil, err
	}
	if generated {
		a.logger.Warn("Using generated encryption key, set ENCRYPTION_KEY to match the worker",
			zap.String("key", hex.EncodeToString(keyBytes)))
	}

	dataConverter, err := codec.NewEncryptionDataConverter(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryption data converter: %w", err)
	}

	c, err := client.Dial(client.Options{
		HostPort:      a.cfg.Temporal.Address,
		Namespace:     a.cfg.Temporal.Namespace,
		DataConverter: dataConverter,
		Logger:        logging.NewTemporalLogger(a.logger),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create Temporal client: %w", err)
	}
	return c, nil
}

func (a *app) newResolver() (*geocode.Resolver, error) {
	fence := geocode.SriLanka
	if !strings.EqualFold(a.cfg.Geocoding.CountryCode, fence.CountryCode) {
		return nil, fmt.Errorf("unsupported country code %q, only %q is supported", a.cfg.Geocoding.CountryCode, fence.CountryCode)
	}

	geo := a.cfg.Geocoding
	nominatim := geocode.NewNominatim(geo.BaseURL, fence,
		geocode.WithUserAgent(geo.UserAgent),
		geocode.WithRateLimit(geo.RateLimit),
		geocode.WithTimeout(config.Duration(geo.Timeout)),
		geocode.WithResultLimit(geo.ResultLimit),
		geocode.WithNominatimLogger(a.logger.Named("nominatim")))

	return geocode.NewResolver(nominatim, fence,
		geocode.WithDebounce(config.Duration(geo.Debounce)),
		geocode.WithLimit(geo.ResultLimit),
		geocode.WithLookupTimeout(config.Duration(geo.Timeout)),
		geocode.WithLogger(a.logger.Named("resolver"))), nil
}

func (a *app) newBackend() (*backend.Client, error) {
	return backend.NewClient(a.cfg.Backend.BaseURL, a.cfg.Backend.SessionCookie,
		backend.WithTimeout(config.Duration(a.cfg.Backend.Timeout)),
		backend.WithLogger(a.logger.Named("backend")))
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
