package process

import (
	"errors"
	"os/exec"
	"strings"
)

// shellChars mark a command line that needs a shell.
const shellChars = "\"';|<>$\\"

// ErrEmptyCommand is returned for a command line with nothing to execute.
var ErrEmptyCommand = errors.New("empty command line")

// NeedsShell reports whether cmdline must be interpreted by sh.
func NeedsShell(cmdline string) bool {
	return strings.ContainsAny(cmdline, shellChars)
}

// BuildCommand returns a ready-to-start command for cmdline.
// The command is NOT started.
func BuildCommand(cmdline string) (*exec.Cmd, error) {
	if NeedsShell(cmdline) {
		return exec.Command("sh", "-c", cmdline), nil
	}

	argv := strings.Fields(cmdline)
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}
	return exec.Command(argv[0], argv[1:]...), nil
}
