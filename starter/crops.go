package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"land-assessment-system/config"
	"land-assessment-system/crops"
	"land-assessment-system/marketplace"
	"land-assessment-system/models"
)

var watchCropsCmd = &cobra.Command{
	Use:   "watch-crops",
	Short: "Print new crops as they are listed in the marketplace",
	RunE:  runWatchCrops,
}

func runWatchCrops(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backendClient, err := a.newBackend()
	if err != nil {
		return err
	}

	store := marketplace.NewStore(a.logger.Named("marketplace"))
	defer store.Clear()

	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	err = store.Populate(loadCtx, backendClient)
	cancel()
	if err != nil {
		return err
	}
	fmt.Printf("Marketplace has %d products\n", len(store.Products()))

	watcher := crops.NewWatcher(backendClient, func(products []models.Product) {
		store.Upsert(products...)
		for _, p := range products {
			fmt.Printf("New crop listed: %s (%g %s at %.2f)\n", p.Name, p.Quantity, p.Unit, p.Price)
		}
	},
		crops.WithInterval(config.Duration(a.cfg.Crops.PollInterval)),
		crops.WithLogger(a.logger.Named("crops")))

	// seed with what is already listed so only later additions are reported
	if _, err := watcher.Poll(ctx); err != nil {
		a.logger.Warn("Initial crop poll failed", zap.Error(err))
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	<-ctx.Done()
	return nil
}
