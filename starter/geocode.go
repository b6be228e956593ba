package main

import (
	"context"

	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search locations inside Sri Lanka",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		resolver, err := a.newResolver()
		if err != nil {
			return err
		}
		defer resolver.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		results, err := resolver.Search(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(results)
	},
}

var (
	locateLat float64
	locateLng float64
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Resolve a map point to an address",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		resolver, err := a.newResolver()
		if err != nil {
			return err
		}
		defer resolver.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		resolver.OpenMap()
		loc, err := resolver.Click(ctx, locateLat, locateLng)
		if err != nil {
			return err
		}
		pos := loc.Position()
		return printJSON(map[string]interface{}{
			"address":     loc.Address(),
			"lat":         pos.Lat,
			"lng":         pos.Lng,
			"approximate": loc.Approximate(),
		})
	},
}

func init() {
	locateCmd.Flags().Float64Var(&locateLat, "lat", 0, "Latitude")
	locateCmd.Flags().Float64Var(&locateLng, "lng", 0, "Longitude")
	_ = locateCmd.MarkFlagRequired("lat")
	_ = locateCmd.MarkFlagRequired("lng")
}
