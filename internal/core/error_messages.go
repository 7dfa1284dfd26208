package core

// error_messages.go maps run failures to operator-facing messages.
//
// # Error Codes Reference
//
// Database errors (DB001-DB005):
//   - DB001: Duplicate assoc key on load
//   - DB002: Referenced row missing on load
//   - DB003: Database unreachable
//   - DB004: Connection dropped mid-run
//   - DB005: Authentication failed
//
// File errors (FILE001-FILE003):
//   - FILE001: Input file missing
//   - FILE002: Permission denied
//   - FILE003: Line too long
//
// Run errors (RUN001-RUN003):
//   - RUN001: Bulk file failed the integrity check
//   - RUN002: Run timed out
//   - RUN003: Too many concurrent runs
//
// Generic (ERR000): anything not matched above.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage is an operator-facing description of a failure.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is matched case-insensitively against the error text.
// The first match wins, so specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "An association key already exists in " + AssocTable,
			Action:  "Reset " + AssocSequence + " and rerun the load",
			Code:    "DB001",
		},
	},
	{
		pattern: "violates foreign key",
		msg: UserMessage{
			Message: "A resolved key no longer exists in the database",
			Action:  "Rerun the sanity check against the current database",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the database",
			Action:  "Check DATABASE_URL and that the server is up",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "The database connection was interrupted",
			Action:  "Run the file again",
			Code:    "DB004",
		},
	},
	{
		pattern: "password authentication failed",
		msg: UserMessage{
			Message: "The database rejected the credentials",
			Action:  "Check the user and password in DATABASE_URL",
			Code:    "DB005",
		},
	},
	{
		pattern: "no such file",
		msg: UserMessage{
			Message: "The input file does not exist",
			Action:  "Check the file name, relative to the working directory",
			Code:    "FILE001",
		},
	},
	{
		pattern: "permission denied",
		msg: UserMessage{
			Message: "A run file could not be opened",
			Action:  "Check permissions on the input and output directories",
			Code:    "FILE002",
		},
	},
	{
		pattern: "token too long",
		msg: UserMessage{
			Message: "The input contains a line longer than 1MB",
			Action:  "Check that the file is tab-delimited text",
			Code:    "FILE003",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "The run timed out",
			Action:  "Raise RUN_TIMEOUT or split the file",
			Code:    "RUN002",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "The run failed",
	Action:  "See the diagnostics file for details",
	Code:    "ERR000",
}

// MapError converts err to an operator-facing message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	switch {
	case errors.Is(err, ErrIntegrity):
		return UserMessage{
			Message: "The bulk file failed the integrity check",
			Action:  "Fix the rows named in the error file and run again",
			Code:    "RUN001",
		}
	case errors.Is(err, ErrTooManyRuns):
		return UserMessage{
			Message: "Too many runs are in progress",
			Action:  "Retry in a few seconds",
			Code:    "RUN003",
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matched a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
