package main

import (
	"context"
	"fmt"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/randomizedcoder/go-pan/internal/metrics"
)

var (
	statusURL     string
	statusTimeout time.Duration
)

var cmdStatus = &cobra.Command{
	Use:   "status",
	Short: "Show a running scheduler's state from its metrics endpoint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), statusTimeout)
		defer cancel()

		st, err := metrics.NewStatusScraper(statusURL, statusTimeout).Scrape(ctx)
		if err != nil {
			return err
		}
		printStatus(cmd, st)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cmdStatus)
	cmdStatus.Flags().StringVar(&statusURL, "url", "http://localhost:9090/metrics", "scheduler metrics URL")
	cmdStatus.Flags().DurationVar(&statusTimeout, "timeout", 5*time.Second, "request timeout")
}

func printStatus(cmd *cobra.Command, st *metrics.Status) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "tag:        %s\n", st.Tag)
	fmt.Fprintf(out, "run id:     %s\n", st.RunID)
	fmt.Fprintf(out, "version:    %s\n", st.Version)
	fmt.Fprintf(out, "elapsed:    %s\n", st.Elapsed.Truncate(time.Second))
	fmt.Fprintf(out, "slots:      %d/%d\n", st.ActiveSlots, st.MaxActive)
	fmt.Fprintf(out, "orphans:    %d\n", st.OrphanGroups)
	fmt.Fprintf(out, "started:    %d (%d failed to start)\n", st.TestsStarted, st.StartFailures)

	last := "none"
	if st.LastSignal != 0 {
		last = unix.SignalName(syscall.Signal(st.LastSignal))
	}
	fmt.Fprintf(out, "last sent:  %s\n", last)

	verdicts := make([]string, 0, len(st.Results))
	for v := range st.Results {
		verdicts = append(verdicts, v)
	}
	sort.Strings(verdicts)
	for _, v := range verdicts {
		fmt.Fprintf(out, "  %-8s %d\n", v, st.Results[v])
	}
}
