package config

import (
	"errors"
	"fmt"

	"github.com/randomizedcoder/go-pan/internal/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the configuration for errors and inconsistencies.
// Returns nil if valid, or an error describing the problem.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Tag == "" {
		errs = append(errs, ValidationError{
			Field:   "tag",
			Message: "must supply -n",
		})
	}

	if cfg.ZooPath == "" {
		errs = append(errs, ValidationError{
			Field:   "zoo",
			Message: "must supply -a or set the ZOO environment variable",
		})
	}

	if cfg.CommandFile == "" && len(cfg.Command) == 0 {
		errs = append(errs, ValidationError{
			Field:   "command_file",
			Message: "must supply a command file or a command",
		})
	}

	if cfg.Concurrency < 1 {
		errs = append(errs, ValidationError{
			Field:   "concurrency",
			Message: "must be at least 1",
		})
	}

	if cfg.Starts < StartsUnset {
		errs = append(errs, ValidationError{
			Field:   "starts",
			Message: fmt.Sprintf("must not be negative (got %d)", cfg.Starts),
		})
	}

	if cfg.RunTime < 0 {
		errs = append(errs, ValidationError{
			Field:   "run_time",
			Message: "must not be negative",
		})
	}

	validReports := map[string]bool{"rts": true, "none": true}
	if !validReports[cfg.ReportType] {
		errs = append(errs, ValidationError{
			Field:   "report_type",
			Message: fmt.Sprintf("must be 'rts' or 'none' (got %q)", cfg.ReportType),
		})
	}

	// Log format must be valid
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.LogFormat] {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be 'json' or 'text' (got %q)", cfg.LogFormat),
		})
	}

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: err.Error(),
		})
	}

	if cfg.TUIEnabled && (cfg.OutputFile == "" || cfg.LogFile == "-") {
		errs = append(errs, ValidationError{
			Field:   "tui",
			Message: "the dashboard needs the terminal: send test output to a file with -o and keep -l off stdout",
		})
	}

	// Return combined errors
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}
