package main

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/waffle/internal/week"
	"github.com/spf13/cobra"
)

func newWeekCmd(opts *options) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "week",
		Short: "Show the week containing an instant and its on-time window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				now = t
			}

			clock := week.NewClock(opts.cfg.WeekOffset)
			w := clock.Current(now)
			from, to := clock.OnTimeWindow(w)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "week:    %s\n", w)
			fmt.Fprintf(out, "label:   %s\n", clock.Label(w))
			fmt.Fprintf(out, "on time: %s to %s\n", from.Format("Mon Jan 2 15:04"), to.Format("Mon Jan 2 15:04 MST"))
			fmt.Fprintf(out, "kept:    %s, %s\n", w, w.Prev())
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "RFC 3339 instant to evaluate instead of now")
	return cmd
}
