// Package zoo records which processes are currently running under which tags.
//
// The registry is shared between cooperating processes: a scheduler writes a
// record when it admits a worker and tombstones it when the worker is gone,
// while inspection tools look jobs up by tag to signal them. Two
// implementations exist: File, a lock-protected flat file compatible with
// external tools, and Memory, for single-process use and tests.
package zoo

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvName is the environment variable naming the default registry file.
const EnvName = "ZOO"

// OrphanTag is the tag under which surviving process groups are re-registered
// after their launching worker has been reaped.
const OrphanTag = "panorphan"

// MaxRecordLen bounds the width of one record, excluding the newline.
const MaxRecordLen = 1024

// TombstoneMarker overwrites the first byte of a dead record.
const TombstoneMarker = '#'

// ErrNotFound is returned when no live record matches.
var ErrNotFound = errors.New("no live record")

// Record is one live registry entry.
type Record struct {
	PID     int
	Tag     string
	CmdLine string
}

// Registry is the key-value view of the active-process registry.
type Registry interface {
	// Register records pid under tag. Any live record already held by pid is
	// dropped after the new one is written, so a pid has at most one live
	// record and is never invisible in between.
	Register(pid int, tag, cmdline string) error

	// Tombstone marks the live record for pid as dead.
	Tombstone(pid int) error

	// Lookup returns the pid of the first live record carrying tag.
	Lookup(tag string) (int, error)

	// List returns every live record in file order.
	List() ([]Record, error)

	Close() error
}

// DefaultPath returns the registry path named by the environment, or "".
func DefaultPath() string {
	return os.Getenv(EnvName)
}

// encode renders a record line without the trailing newline, truncating the
// command line so the record fits MaxRecordLen.
func encode(pid int, tag, cmdline string) string {
	line := fmt.Sprintf("%d,%s,%s", pid, tag, cmdline)
	if len(line) > MaxRecordLen {
		line = line[:MaxRecordLen]
	}
	return line
}

// decode parses a live record line. ok is false for tombstoned or malformed lines.
func decode(line string) (rec Record, ok bool) {
	if line == "" || line[0] == TombstoneMarker {
		return Record{}, false
	}

	pidField, rest, found := strings.Cut(line, ",")
	if !found {
		return Record{}, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(pidField))
	if err != nil {
		return Record{}, false
	}

	tag, cmdline, _ := strings.Cut(rest, ",")
	return Record{
		PID:     pid,
		Tag:     tag,
		CmdLine: strings.TrimRight(cmdline, " "),
	}, true
}
