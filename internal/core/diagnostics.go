package core

// diagnostics.go defines the line-tagged defects recorded while processing an
// input file.
//
// Each kind has a code for support reference and the label curators already
// know from the error file:
//
//	ROW001 - Invalid Line: fewer than three tab-separated fields
//	OBJ001 - Invalid Object: no valid marker, strain or allele has the id
//	OBJ002 - Object Returns > 1 result: the id matches several valid objects
//	REF001 - Invalid Reference: the J: number does not resolve
//	USR001 - Invalid User: the login does not resolve
//
// All current kinds are fatal. Warnings are counted separately and never gate
// the load.

import (
	"fmt"
	"io"
)

// Severity decides whether a diagnostic blocks the load.
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityWarning Severity = "warning"
)

// DiagnosticKind is one entry of the diagnostic catalogue.
type DiagnosticKind struct {
	Code     string   `json:"code"`
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`
}

var (
	KindInvalidLine      = DiagnosticKind{Code: "ROW001", Label: "Invalid Line", Severity: SeverityFatal}
	KindInvalidObject    = DiagnosticKind{Code: "OBJ001", Label: "Invalid Object", Severity: SeverityFatal}
	KindAmbiguousObject  = DiagnosticKind{Code: "OBJ002", Label: "Object Returns > 1 result", Severity: SeverityFatal}
	KindInvalidReference = DiagnosticKind{Code: "REF001", Label: "Invalid Reference", Severity: SeverityFatal}
	KindInvalidUser      = DiagnosticKind{Code: "USR001", Label: "Invalid User", Severity: SeverityFatal}
)

// Diagnostic is one defect found on one input line.
type Diagnostic struct {
	Line  int            `json:"line"`
	Kind  DiagnosticKind `json:"kind"`
	Value string         `json:"value"`
}

// String formats the diagnostic the way it appears in the error file.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s (row %d): %s", d.Kind.Label, d.Line, d.Value)
}

// ErrorLog writes diagnostics to the error file and counts them in the run state.
type ErrorLog struct {
	w        io.Writer
	state    *RunState
	observer Observer
	err      error
}

// NewErrorLog returns a log writing to w. A nil w only counts.
func NewErrorLog(w io.Writer, state *RunState, observer Observer) *ErrorLog {
	if observer == nil {
		observer = NopObserver{}
	}
	return &ErrorLog{w: w, state: state, observer: observer}
}

// Record counts d and appends one line to the error file.
// A failed write is remembered and reported by Err; counting continues.
func (l *ErrorLog) Record(d Diagnostic) {
	switch d.Kind.Severity {
	case SeverityWarning:
		l.state.WarningCount++
	default:
		l.state.FatalCount++
	}
	l.state.Diagnostics = append(l.state.Diagnostics, d)
	l.observer.DiagnosticRecorded(d)

	if l.w == nil || l.err != nil {
		return
	}
	if _, err := fmt.Fprintln(l.w, d.String()); err != nil {
		l.err = fmt.Errorf("write error file: %w", err)
	}
}

// Err returns the first write failure, if any.
func (l *ErrorLog) Err() error { return l.err }
