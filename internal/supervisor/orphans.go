package supervisor

import (
	"errors"
	"log/slog"
	"syscall"

	"github.com/randomizedcoder/go-pan/internal/process"
	"github.com/randomizedcoder/go-pan/internal/zoo"
)

// Orphans tracks process groups that outlived their worker. Entries live in
// an arena; freed indexes are reused before the arena grows.
type Orphans struct {
	ctl    process.Controller
	reg    zoo.Registry
	logger *slog.Logger
	onGone func(pgid int)

	pgids []int
	free  []int
	live  int
}

// NewOrphans creates an empty tracker.
func NewOrphans(ctl process.Controller, reg zoo.Registry, logger *slog.Logger) *Orphans {
	return &Orphans{ctl: ctl, reg: reg, logger: logger}
}

// Add tracks pgid and returns its arena index.
func (o *Orphans) Add(pgid int) int {
	o.live++
	if n := len(o.free); n > 0 {
		idx := o.free[n-1]
		o.free = o.free[:n-1]
		o.pgids[idx] = pgid
		return idx
	}
	o.pgids = append(o.pgids, pgid)
	return len(o.pgids) - 1
}

// Len returns the number of tracked groups.
func (o *Orphans) Len() int {
	return o.live
}

// Cap returns the arena size.
func (o *Orphans) Cap() int {
	return len(o.pgids)
}

// Contains reports whether pgid is tracked.
func (o *Orphans) Contains(pgid int) bool {
	if pgid == 0 {
		return false
	}
	for _, p := range o.pgids {
		if p == pgid {
			return true
		}
	}
	return false
}

// PGIDs lists the tracked groups.
func (o *Orphans) PGIDs() []int {
	out := make([]int, 0, o.live)
	for _, p := range o.pgids {
		if p != 0 {
			out = append(out, p)
		}
	}
	return out
}

// Check sends sig to every tracked group; sig 0 only checks liveness. Groups that no
// longer exist are tombstoned in the registry and released. It returns the
// number of groups released.
func (o *Orphans) Check(sig syscall.Signal) int {
	released := 0
	for idx, pgid := range o.pgids {
		if pgid == 0 {
			continue
		}

		err := o.ctl.Signal(pgid, sig)
		switch {
		case err == nil:
			if sig != 0 {
				o.logger.Debug("orphan_signaled", "pgid", pgid, "signal", sig.String())
			}
		case errors.Is(err, process.ErrGone):
			if terr := o.reg.Tombstone(pgid); terr != nil {
				o.logger.Warn("registry_tombstone_failed", "pgid", pgid, "error", terr)
			}
			o.release(idx)
			released++
			o.logger.Info("orphan_gone", "pgid", pgid)
			if o.onGone != nil {
				o.onGone(pgid)
			}
		default:
			o.logger.Warn("orphan_signal_failed",
				"pgid", pgid,
				"signal", int(sig),
				"error", err,
			)
		}
	}
	return released
}

func (o *Orphans) release(idx int) {
	o.pgids[idx] = 0
	o.free = append(o.free, idx)
	o.live--
}
