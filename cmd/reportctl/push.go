package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var pushFlags struct {
	org    string
	report string
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push pending local drafts to the remote store",
	Long: `Push pending local drafts to the remote store.

Without --report every organization's pending drafts are pushed. Failures
are reported per report and do not stop the run.`,
	RunE: runPush,
}

func init() {
	pushCmd.Flags().StringVar(&pushFlags.org, "org", "", "organization id (required with --report)")
	pushCmd.Flags().StringVar(&pushFlags.report, "report", "", "push a single report")
	pushCmd.MarkFlagsRequiredTogether("org", "report")
}

func runPush(cmd *cobra.Command, args []string) error {
	e, err := openEnv(true)
	if err != nil {
		return err
	}
	defer e.close()
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if err := e.engine.Ping(ctx); err != nil {
		return err
	}

	type target struct{ org, report string }
	var targets []target
	if pushFlags.report != "" {
		targets = append(targets, target{pushFlags.org, pushFlags.report})
	} else {
		drafts, err := e.store.ListDrafts(ctx)
		if err != nil {
			return err
		}
		for _, d := range drafts {
			targets = append(targets, target{d.OrganizationID, d.ReportID})
		}
	}

	var errs []error
	for _, t := range targets {
		res, err := e.engine.Push(ctx, t.org, t.report)
		if err != nil {
			fmt.Fprintf(out, "❌ %s: %v\n", t.report, err)
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "✅ %s v%d (%s)\n", res.ReportID, res.Version, res.Resolution.Reason)
	}
	fmt.Fprintf(out, "Pushed %d of %d\n", len(targets)-len(errs), len(targets))
	return errors.Join(errs...)
}
