package main

import (
	"context"

	"github.com/spf13/cobra"

	"land-assessment-system/workflows"
)

var statusCmd = &cobra.Command{
	Use:   "status ATTEMPT_KEY",
	Short: "Query the state of a land assessment workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		c, err := a.dialTemporal()
		if err != nil {
			return err
		}
		defer c.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		state, err := workflows.NewClientRunner(c, a.cfg.Temporal.TaskQueue).State(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(state)
	},
}
