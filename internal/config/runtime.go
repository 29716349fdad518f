package config

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// RunTime is a wall-clock budget written as N[s|m|h|d]. A bare number
// counts minutes.
type RunTime time.Duration

// ParseRunTime parses N[s|m|h|d].
func ParseRunTime(s string) (RunTime, error) {
	if s == "" {
		return 0, fmt.Errorf("empty run time")
	}

	unit := time.Minute
	digits := s
	switch s[len(s)-1] {
	case 's':
		unit = time.Second
		digits = s[:len(s)-1]
	case 'm':
		digits = s[:len(s)-1]
	case 'h':
		unit = time.Hour
		digits = s[:len(s)-1]
	case 'd':
		unit = 24 * time.Hour
		digits = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("run time %q: want N[s|m|h|d]", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("run time %q: must not be negative", s)
	}
	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("run time %q: too long", s)
	}
	return RunTime(time.Duration(n) * unit), nil
}

// String implements flag.Value.
func (r *RunTime) String() string {
	if r == nil || *r == 0 {
		return ""
	}
	return time.Duration(*r).String()
}

// Set implements flag.Value.
func (r *RunTime) Set(s string) error {
	v, err := ParseRunTime(s)
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// UnmarshalYAML accepts the same N[s|m|h|d] form as the flag.
func (r *RunTime) UnmarshalYAML(node *yaml.Node) error {
	return r.Set(node.Value)
}
