package process

import (
	"errors"
	"reflect"
	"testing"
)

func TestNeedsShell(t *testing.T) {
	testCases := []struct {
		cmdline  string
		expected bool
	}{
		{"abort01", false},
		{"access01 -i 5 -t", false},
		{"echo hi > /tmp/x", true},
		{"a | b", true},
		{"a; b", true},
		{"echo $HOME", true},
		{`echo "quoted"`, true},
		{"echo 'quoted'", true},
		{`echo back\slash`, true},
		{"cat < in", true},
	}

	for _, tc := range testCases {
		if got := NeedsShell(tc.cmdline); got != tc.expected {
			t.Errorf("NeedsShell(%q) = %v, want %v", tc.cmdline, got, tc.expected)
		}
	}
}

func TestBuildCommand(t *testing.T) {
	testCases := []struct {
		name     string
		cmdline  string
		wantArgs []string
	}{
		{"direct", "sleep  1", []string{"sleep", "1"}},
		{"shell", "exit 3; true", []string{"sh", "-c", "exit 3; true"}},
		{"single", "true", []string{"true"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cmd, err := BuildCommand(tc.cmdline)
			if err != nil {
				t.Fatalf("BuildCommand(%q) error: %v", tc.cmdline, err)
			}
			if !reflect.DeepEqual(cmd.Args, tc.wantArgs) {
				t.Errorf("Args = %q, want %q", cmd.Args, tc.wantArgs)
			}
		})
	}
}

func TestBuildCommand_Empty(t *testing.T) {
	_, err := BuildCommand("   ")
	if !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("BuildCommand(blank) error = %v, want ErrEmptyCommand", err)
	}
}
