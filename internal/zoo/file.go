package zoo

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// File is a Registry backed by a flat text file guarded by an exclusive
// whole-file advisory lock. Every operation holds the lock only for its own
// scan and mutation. A File is safe for use by multiple goroutines.
type File struct {
	path string
	f    *os.File

	// mu serializes goroutines sharing f, which flock does not.
	mu sync.Mutex
}

// line is one record slot in the file.
type line struct {
	off  int64
	text string // without the newline
}

// Open opens (creating if absent) the registry file at path. Existing content
// is preserved since other processes may hold records in it.
func Open(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("open registry: empty path (set %s or pass a path)", EnvName)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, fmt.Errorf("open registry %s: %w", path, err)
	}
	return &File{path: path, f: f}, nil
}

// Path returns the registry file path.
func (z *File) Path() string {
	return z.path
}

// Close closes the underlying file.
func (z *File) Close() error {
	return z.f.Close()
}

// withLock runs fn while holding the exclusive lock. The lock is released on
// every return path.
func (z *File) withLock(fn func() error) error {
	z.mu.Lock()
	defer z.mu.Unlock()

	fd := int(z.f.Fd())
	for {
		err := unix.Flock(fd, unix.LOCK_EX)
		if err == nil {
			break
		}
		if err != unix.EINTR {
			return fmt.Errorf("lock registry %s: %w", z.path, err)
		}
	}
	defer unix.Flock(fd, unix.LOCK_UN)

	return fn()
}

// readLines loads the whole file and reports its size. Caller must hold the lock.
func (z *File) readLines() ([]line, int64, error) {
	data, err := io.ReadAll(io.NewSectionReader(z.f, 0, 1<<62))
	if err != nil {
		return nil, 0, fmt.Errorf("read registry %s: %w", z.path, err)
	}

	var lines []line
	var off int64
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			lines = append(lines, line{off: off, text: string(data)})
			off += int64(len(data))
			break
		}
		lines = append(lines, line{off: off, text: string(data[:i])})
		off += int64(i + 1)
		data = data[i+1:]
	}
	return lines, off, nil
}

// Register writes the record into the first tombstoned line wide enough to
// hold it, or appends it at end of file.
func (z *File) Register(pid int, tag, cmdline string) error {
	rec := encode(pid, tag, cmdline)

	return z.withLock(func() error {
		lines, size, err := z.readLines()
		if err != nil {
			return err
		}

		var stale []line
		slot := -1
		for i, l := range lines {
			if r, ok := decode(l.text); ok {
				if r.PID == pid {
					stale = append(stale, l)
				}
				continue
			}
			if slot < 0 && isTombstone(l.text) && len(l.text) >= len(rec) {
				slot = i
			}
		}

		if slot >= 0 {
			l := lines[slot]
			padded := rec + strings.Repeat(" ", len(l.text)-len(rec))
			if _, err := z.f.WriteAt([]byte(padded), l.off); err != nil {
				return fmt.Errorf("write registry record: %w", err)
			}
		} else {
			buf := make([]byte, 0, len(rec)+2)
			if size > 0 && !z.terminated(size) {
				buf = append(buf, '\n')
			}
			buf = append(buf, rec...)
			buf = append(buf, '\n')
			if _, err := z.f.WriteAt(buf, size); err != nil {
				return fmt.Errorf("append registry record: %w", err)
			}
		}

		for _, l := range stale {
			if err := z.tombstoneAt(l.off); err != nil {
				return err
			}
		}
		return nil
	})
}

// Tombstone marks every live record for pid as dead.
func (z *File) Tombstone(pid int) error {
	return z.withLock(func() error {
		lines, _, err := z.readLines()
		if err != nil {
			return err
		}

		found := false
		for _, l := range lines {
			if r, ok := decode(l.text); ok && r.PID == pid {
				if err := z.tombstoneAt(l.off); err != nil {
					return err
				}
				found = true
			}
		}
		if !found {
			return fmt.Errorf("tombstone pid %d: %w", pid, ErrNotFound)
		}
		return nil
	})
}

// Lookup returns the pid of the first live record with tag.
func (z *File) Lookup(tag string) (int, error) {
	pid := 0
	err := z.withLock(func() error {
		lines, _, err := z.readLines()
		if err != nil {
			return err
		}
		for _, l := range lines {
			if r, ok := decode(l.text); ok && r.Tag == tag {
				pid = r.PID
				return nil
			}
		}
		return fmt.Errorf("lookup tag %q: %w", tag, ErrNotFound)
	})
	return pid, err
}

// List returns every live record.
func (z *File) List() ([]Record, error) {
	var out []Record
	err := z.withLock(func() error {
		lines, _, err := z.readLines()
		if err != nil {
			return err
		}
		for _, l := range lines {
			if r, ok := decode(l.text); ok {
				out = append(out, r)
			}
		}
		return nil
	})
	return out, err
}

func (z *File) tombstoneAt(off int64) error {
	if _, err := z.f.WriteAt([]byte{TombstoneMarker}, off); err != nil {
		return fmt.Errorf("tombstone registry record: %w", err)
	}
	return nil
}

func isTombstone(text string) bool {
	return text != "" && text[0] == TombstoneMarker
}

// terminated reports whether the byte before size is a newline.
func (z *File) terminated(size int64) bool {
	var b [1]byte
	if _, err := z.f.ReadAt(b[:], size-1); err != nil {
		return true
	}
	return b[0] == '\n'
}
