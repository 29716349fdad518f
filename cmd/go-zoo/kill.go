package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/randomizedcoder/go-pan/internal/zoo"
)

var (
	killSignal string
	killAll    bool
	killDryRun bool
)

// signalGroup delivers a signal to a process group. Replaced in tests.
var signalGroup = func(pgid int, sig syscall.Signal) error {
	return unix.Kill(-pgid, sig)
}

var cmdKill = &cobra.Command{
	Use:   "kill [tag...]",
	Short: "Signal the process groups registered under the given tags",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 && !killAll {
			return errors.New("name at least one tag or pass --all")
		}
		sig, err := parseSignal(killSignal)
		if err != nil {
			return err
		}

		reg, err := openRegistry()
		if err != nil {
			return err
		}
		defer reg.Close()

		records, err := reg.List()
		if err != nil {
			return err
		}
		targets, err := selectTargets(records, args, killAll)
		if err != nil {
			return err
		}

		var (
			mu  sync.Mutex
			out = cmd.OutOrStdout()
		)
		var g errgroup.Group
		for _, r := range targets {
			g.Go(func() error {
				if killDryRun {
					mu.Lock()
					fmt.Fprintf(out, "would send %s to %d (%s)\n", unix.SignalName(sig), r.PID, r.Tag)
					mu.Unlock()
					return nil
				}
				err := signalGroup(r.PID, sig)
				if errors.Is(err, unix.ESRCH) {
					mu.Lock()
					fmt.Fprintf(out, "%d (%s): already gone\n", r.PID, r.Tag)
					mu.Unlock()
					return nil
				}
				if err != nil {
					return fmt.Errorf("signal %d (%s): %w", r.PID, r.Tag, err)
				}
				mu.Lock()
				fmt.Fprintf(out, "sent %s to %d (%s)\n", unix.SignalName(sig), r.PID, r.Tag)
				mu.Unlock()
				return nil
			})
		}
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(cmdKill)
	cmdKill.Flags().StringVarP(&killSignal, "signal", "s", "TERM", "signal name or number")
	cmdKill.Flags().BoolVar(&killAll, "all", false, "signal every live record")
	cmdKill.Flags().BoolVarP(&killDryRun, "dry-run", "n", false, "print what would be signaled")
}

// selectTargets resolves tags to the first live record carrying each, or
// returns every record when all is set. Records with pid 0 or 1 are never
// targets: kill(0) and kill(-1) reach far beyond one group.
func selectTargets(records []zoo.Record, tags []string, all bool) ([]zoo.Record, error) {
	signalable := records[:0:0]
	for _, r := range records {
		if r.PID > 1 {
			signalable = append(signalable, r)
		}
	}
	records = signalable

	if all {
		return records, nil
	}

	var (
		targets []zoo.Record
		missing []string
	)
	for _, tag := range tags {
		found := false
		for _, r := range records {
			if r.Tag == tag {
				targets = append(targets, r)
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, tag)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w for tags: %s", zoo.ErrNotFound, strings.Join(missing, ", "))
	}
	return targets, nil
}

// parseSignal accepts "TERM", "SIGTERM", "term" or "15".
func parseSignal(s string) (syscall.Signal, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 || n >= 65 {
			return 0, fmt.Errorf("invalid signal number %d", n)
		}
		return syscall.Signal(n), nil
	}
	name := strings.ToUpper(s)
	if !strings.HasPrefix(name, "SIG") {
		name = "SIG" + name
	}
	sig := unix.SignalNum(name)
	if sig == 0 {
		return 0, fmt.Errorf("unknown signal %q", s)
	}
	return sig, nil
}
