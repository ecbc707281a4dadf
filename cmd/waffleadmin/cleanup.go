package main

import (
	"fmt"

	"github.com/dmitrijs2005/waffle/internal/cleanup"
	"github.com/dmitrijs2005/waffle/internal/client/services"
	"github.com/dmitrijs2005/waffle/internal/week"
	"github.com/spf13/cobra"
)

// openStore is a test seam for services.OpenStore.
var openStore = services.OpenStore

func newCleanupCmd(opts *options) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "cleanup [blob]",
		Short: "Delete files of weeks outside the retention horizon",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			creds, err := opts.unlock(cmd, args)
			if err != nil {
				return err
			}
			s, closer, err := openStore(ctx, opts.cfg, creds, opts.log)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer closer.Close()

			job := cleanup.NewJob(s, week.NewClock(opts.cfg.WeekOffset), opts.log)
			out := cmd.OutOrStdout()

			if dryRun {
				snap, err := s.Read(ctx)
				if err != nil {
					return err
				}
				expired := cleanup.Plan(snap.Keys(), job.Current())
				for _, k := range expired {
					fmt.Fprintln(out, k)
				}
				fmt.Fprintf(out, "%d files would be removed\n", len(expired))
				return nil
			}

			n, err := job.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d files removed\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list expired files without deleting them")
	return cmd
}
