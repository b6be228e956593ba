package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"land-assessment-system/config"
	"land-assessment-system/geocode"
	"land-assessment-system/session"
	"land-assessment-system/workflows"
)

var (
	assessSize          string
	assessQuery         string
	assessLat           float64
	assessLng           float64
	assessPaymentMethod string
	assessOwnerID       string
	assessAttemptKey    string
)

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Request a land assessment and pay the fee",
	Long: `Resolve the land location, validate the details and pay the assessment fee.

The location is either the best search match for --query or the point given
by --lat/--lng. Pass --attempt-key from a failed run to retry it without
creating a second land record.`,
	RunE: runAssess,
}

func init() {
	assessCmd.Flags().StringVar(&assessSize, "size", "", "Land size")
	assessCmd.Flags().StringVar(&assessQuery, "query", "", "Location search text")
	assessCmd.Flags().Float64Var(&assessLat, "lat", 0, "Latitude of the land")
	assessCmd.Flags().Float64Var(&assessLng, "lng", 0, "Longitude of the land")
	assessCmd.Flags().StringVar(&assessPaymentMethod, "payment-method", "", "Tokenized card, e.g. pm_card_visa")
	assessCmd.Flags().StringVar(&assessOwnerID, "owner-id", "", "Land owner user id")
	assessCmd.Flags().StringVar(&assessAttemptKey, "attempt-key", "", "Attempt key of a failed run to retry; a key that already paid returns its outcome")
	_ = assessCmd.MarkFlagRequired("size")
	_ = assessCmd.MarkFlagRequired("payment-method")
	_ = assessCmd.MarkFlagRequired("owner-id")
	assessCmd.MarkFlagsMutuallyExclusive("query", "lat")
	assessCmd.MarkFlagsRequiredTogether("lat", "lng")
}

func runAssess(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	c, err := a.dialTemporal()
	if err != nil {
		return err
	}
	defer c.Close()

	resolver, err := a.newResolver()
	if err != nil {
		return err
	}
	defer resolver.Close()

	opts := []session.Option{
		session.WithFee(a.cfg.Assessment.Fee),
		session.WithActivityTimeout(config.Duration(a.cfg.Assessment.ActivityTimeout)),
		session.WithLogger(a.logger.Named("session")),
	}
	if assessAttemptKey != "" {
		key := assessAttemptKey
		opts = append(opts, session.WithKeyGenerator(func() string { return key }))
	}
	runner := workflows.NewClientRunner(c, a.cfg.Temporal.TaskQueue)
	sess := session.New(assessOwnerID, resolver, runner, opts...)

	sess.SetSize(assessSize)
	if w := sess.Collector().Warning(); w != "" {
		return errors.New(w)
	}

	if err := resolveLocation(ctx, cmd, resolver); err != nil {
		return err
	}

	draft, err := sess.Proceed()
	if err != nil {
		return err
	}
	fmt.Printf("Location: %s\n", draft.Location)
	fmt.Printf("Attempt key: %s\n", sess.AttemptKey())
	fmt.Printf("Workflow ID: %s\n", workflows.WorkflowID(sess.AttemptKey()))
	fmt.Printf("Paying assessment fee: %.2f\n", a.cfg.Assessment.Fee)

	outcome, err := sess.Pay(ctx, assessPaymentMethod)
	if err != nil {
		return err
	}
	if err := printJSON(outcome); err != nil {
		return err
	}
	if !outcome.Succeeded() {
		return fmt.Errorf("payment failed: %s (retry with --attempt-key %s)", outcome.ErrorMessage, sess.AttemptKey())
	}
	return nil
}

func resolveLocation(ctx context.Context, cmd *cobra.Command, resolver *geocode.Resolver) error {
	switch {
	case assessQuery != "":
		results, err := resolver.Search(ctx, assessQuery)
		if err != nil {
			return fmt.Errorf("location search failed: %w", err)
		}
		if len(results) == 0 {
			return fmt.Errorf("no location in Sri Lanka matches %q", assessQuery)
		}
		_, err = resolver.Select(results[0])
		return err
	case cmd.Flags().Changed("lat"):
		resolver.OpenMap()
		loc, err := resolver.Click(ctx, assessLat, assessLng)
		if err != nil {
			return err
		}
		if loc.Approximate() {
			fmt.Println("Address lookup unavailable, using coordinates")
		}
		return nil
	default:
		return errors.New("either --query or --lat/--lng is required")
	}
}
