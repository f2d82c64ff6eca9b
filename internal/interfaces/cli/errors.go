package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"anvil.dev/cli/internal/core/domain"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitNotFound    = 3
	ExitConflict    = 4
	ExitUnavailable = 5
	ExitIntegrity   = 6
	ExitPersistence = 7
)

// usageError marks a malformed invocation.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func newUsageError(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// cobra reports these as plain errors
var cobraUsagePrefixes = []string{
	"unknown command",
	"unknown flag",
	"unknown shorthand flag",
	"required flag",
	"accepts ",
	"requires at least",
	"invalid argument",
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	var usage usageError
	switch {
	case err == nil, errors.Is(err, domain.ErrCleanupWarning):
		return ExitOK
	case errors.As(err, &usage), errors.Is(err, domain.ErrInvalidInput):
		return ExitUsage
	case errors.Is(err, domain.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, domain.ErrNameConflict),
		errors.Is(err, domain.ErrDependencyConflict),
		errors.Is(err, domain.ErrIncompatible):
		return ExitConflict
	case errors.Is(err, domain.ErrDownloadFailed),
		errors.Is(err, domain.ErrManifestUnavailable),
		errors.Is(err, domain.ErrTimeout):
		return ExitUnavailable
	case errors.Is(err, domain.ErrChecksumMismatch):
		return ExitIntegrity
	case errors.Is(err, domain.ErrPersistence):
		return ExitPersistence
	}
	for _, prefix := range cobraUsagePrefixes {
		if strings.HasPrefix(err.Error(), prefix) {
			return ExitUsage
		}
	}
	return ExitFailure
}

// exactArgs is cobra.ExactArgs reported as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func minimumArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}
