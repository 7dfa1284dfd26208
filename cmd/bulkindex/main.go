// Command bulkindex checks curator reference association files and produces
// (and optionally loads) the MGI_Reference_Assoc bulk-load file.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/bulkindex/internal/core"
)

// Exit codes. Data defects in the input never change the exit code; they are
// reported in the error file.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// exitError carries the process exit code of a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode maps err to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err == nil {
		slog.Debug("loaded .env file")
	}

	err := newRootCmd().Execute()
	if err != nil {
		if msg := core.FormatUserError(err); msg != "" && exitCode(err) != exitUsage {
			fmt.Fprintln(os.Stderr, msg)
		}
	}
	os.Exit(exitCode(err))
}
