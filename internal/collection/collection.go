// Package collection loads the ordered list of named commands a scheduler run draws from.
package collection

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
)

// SubstitutionToken is replaced with a per-launch unique string when a command is started.
const SubstitutionToken = "%f"

// CommandLineTag is the tag given to the entry built from trailing command-line arguments.
const CommandLineTag = "cmdln"

// ErrMissingCommand is returned when a tag line carries no command line.
var ErrMissingCommand = errors.New("tag requires a command to execute")

// Entry is one schedulable command. Entries are immutable once loaded.
type Entry struct {
	Tag             string
	CmdLine         string
	HasSubstitution bool
}

// Expand returns the command line with every substitution token replaced by unique.
func (e Entry) Expand(unique string) string {
	if !e.HasSubstitution {
		return e.CmdLine
	}
	return strings.ReplaceAll(e.CmdLine, SubstitutionToken, unique)
}

// Collection is the fixed, ordered set of entries: file order first, then the
// entry built from trailing arguments.
type Collection struct {
	entries []Entry
}

// New creates a collection holding a copy of entries.
func New(entries []Entry) *Collection {
	return &Collection{entries: append([]Entry(nil), entries...)}
}

// Len returns the number of entries.
func (c *Collection) Len() int {
	return len(c.entries)
}

// At returns the entry at index i.
func (c *Collection) At(i int) Entry {
	return c.entries[i]
}

// Entries returns a copy of all entries in order.
func (c *Collection) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Load reads tag/command lines from path (skipped when empty) and appends one
// entry built from args when args is non-empty. No partial collection is
// returned on error.
func Load(path string, args []string) (*Collection, error) {
	var entries []Entry

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open command file: %w", err)
		}
		defer f.Close()

		entries, err = Parse(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	if len(args) > 0 {
		cmdline := strings.Join(args, " ")
		entries = append(entries, Entry{
			Tag:             CommandLineTag,
			CmdLine:         cmdline,
			HasSubstitution: strings.Contains(cmdline, SubstitutionToken),
		})
	}

	return &Collection{entries: entries}, nil
}

// Parse reads "tag command-line" lines. Blank lines and lines starting with
// '#' are ignored.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		tag, cmdline := line, ""
		if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
			tag, cmdline = line[:i], strings.TrimSpace(line[i+1:])
		}
		if cmdline == "" {
			return nil, fmt.Errorf("line %d: %q: %w", lineNo, tag, ErrMissingCommand)
		}

		entries = append(entries, Entry{
			Tag:             tag,
			CmdLine:         cmdline,
			HasSubstitution: strings.Contains(cmdline, SubstitutionToken),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read commands: %w", err)
	}

	return entries, nil
}
