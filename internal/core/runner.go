package core

// runner.go drives one run over an input file:
//
//  1. Open the diagnostics file, the error file and, in load mode, the bulk file
//  2. Seed the assoc key counter (load mode only)
//  3. Process every input line
//  4. Gate the load on the fatal count, verify the bulk file, copy it
//  5. Write the summary and publish the artifacts
//
// Preview runs place the diagnostics and error files next to the input so a
// curator can read them; load runs use the configured log locations.

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// TimestampLayout formats the start and end times in the log files.
const TimestampLayout = time.ANSIC

// ArtifactSink receives the files of a finished run.
type ArtifactSink interface {
	PutArtifact(ctx context.Context, runID, name string, r io.Reader) error
}

// RunOptions describes one run.
type RunOptions struct {
	RunID     string
	InputPath string
	Mode      Mode
	Encoding  Encoding
	OutputDir string    // directory of the bulk file
	DiagPath  string    // diagnostics file in load mode
	ErrorPath string    // error file in load mode
	Load      bool      // copy the bulk file into the database after a clean run
	RunDate   time.Time // date written into every record
}

// RunSummary reports the outcome of a run.
type RunSummary struct {
	RunID       string        `json:"runId"`
	Mode        Mode          `json:"mode"`
	InputPath   string        `json:"inputPath,omitempty"`
	Lines       int           `json:"lines"`
	Emitted     int           `json:"emitted"`
	FatalCount  int           `json:"fatalErrors"`
	Warnings    int           `json:"warnings"`
	FirstKey    int64         `json:"firstKey,omitempty"`
	BytesRead   int64         `json:"bytesRead"`
	Loaded      int64         `json:"loaded"`
	Success     bool          `json:"success"`
	BulkFile    string        `json:"bulkFile,omitempty"`
	DiagFile    string        `json:"diagFile,omitempty"`
	ErrorFile   string        `json:"errorFile,omitempty"`
	Diagnostics []Diagnostic  `json:"diagnostics"`
	Duration    time.Duration `json:"duration"`
}

// Status returns the sanity check line written at the end of the error file.
func (s *RunSummary) Status() string {
	if s.Success {
		return "Sanity check : successful"
	}
	return "Sanity check : failed"
}

// Runner executes runs against one backend.
type Runner struct {
	backend  Backend
	sink     ArtifactSink
	observer Observer
	logger   *slog.Logger
	clock    func() time.Time
}

// RunnerOption customizes a Runner.
type RunnerOption func(*Runner)

// WithArtifactSink publishes run files to sink after every run.
func WithArtifactSink(sink ArtifactSink) RunnerOption {
	return func(r *Runner) { r.sink = sink }
}

// WithObserver reports run events to o.
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithClock overrides the source of the start and end timestamps.
func WithClock(clock func() time.Time) RunnerOption {
	return func(r *Runner) { r.clock = clock }
}

// NewRunner creates a runner over backend.
func NewRunner(backend Backend, opts ...RunnerOption) *Runner {
	r := &Runner{
		backend:  backend,
		observer: NopObserver{},
		logger:   slog.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// runFiles holds the open outputs of a run.
type runFiles struct {
	diag     *os.File
	errs     *os.File
	bulk     *os.File
	diagBuf  *bufio.Writer
	errsBuf  *bufio.Writer
	bulkBuf  *bufio.Writer
	diagPath string
	errsPath string
	bulkPath string
}

// openRunFiles opens the run outputs. Preview mode truncates the
// diagnostics file next to the input; load mode appends to the configured one.
func openRunFiles(opts RunOptions) (*runFiles, error) {
	f := &runFiles{diagPath: opts.DiagPath, errsPath: opts.ErrorPath}
	diagFlags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if opts.Mode.IsPreview() {
		f.diagPath = opts.InputPath + ".diagnostics"
		f.errsPath = opts.InputPath + ".error"
		diagFlags = os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	}

	var err error
	if f.diag, err = os.OpenFile(f.diagPath, diagFlags, 0o644); err != nil {
		return nil, fmt.Errorf("open diagnostics file: %w", err)
	}
	if f.errs, err = os.Create(f.errsPath); err != nil {
		f.close()
		return nil, fmt.Errorf("open error file: %w", err)
	}
	if !opts.Mode.IsPreview() {
		f.bulkPath = filepath.Join(opts.OutputDir, BulkFileName)
		if f.bulk, err = os.Create(f.bulkPath); err != nil {
			f.close()
			return nil, fmt.Errorf("open bulk file %s: %w", BulkFileName, err)
		}
		f.bulkBuf = bufio.NewWriter(f.bulk)
	}
	f.diagBuf = bufio.NewWriter(f.diag)
	f.errsBuf = bufio.NewWriter(f.errs)
	return f, nil
}

// flush writes buffered output of every open file.
func (f *runFiles) flush() error {
	var errs []error
	for _, w := range []*bufio.Writer{f.diagBuf, f.errsBuf, f.bulkBuf} {
		if w != nil {
			errs = append(errs, w.Flush())
		}
	}
	return errors.Join(errs...)
}

func (f *runFiles) close() error {
	var errs []error
	for _, file := range []*os.File{f.diag, f.errs, f.bulk} {
		if file != nil {
			errs = append(errs, file.Close())
		}
	}
	return errors.Join(errs...)
}

// Run processes opts.InputPath. The returned error reports environment
// failures only (files, backend, load); data defects end up in the summary.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*RunSummary, error) {
	start := r.clock()
	logger := r.logger.With("run_id", opts.RunID, "mode", string(opts.Mode))

	input, err := os.Open(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer input.Close()

	files, err := openRunFiles(opts)
	if err != nil {
		return nil, err
	}
	defer files.close()

	server, database := r.backend.Describe()
	fmt.Fprintf(files.diagBuf, "Start Date/Time: %s\n", start.Format(TimestampLayout))
	fmt.Fprintf(files.diagBuf, "Server: %s\n", server)
	fmt.Fprintf(files.diagBuf, "Database: %s\n", database)
	fmt.Fprintf(files.diagBuf, "Run: %s\n", opts.RunID)
	fmt.Fprintf(files.diagBuf, "Input: %s (%s)\n", opts.InputPath, opts.Mode)
	fmt.Fprintf(files.errsBuf, "Start Date/Time: %s\n\n", start.Format(TimestampLayout))

	summary := &RunSummary{
		RunID:     opts.RunID,
		Mode:      opts.Mode,
		InputPath: opts.InputPath,
		BulkFile:  files.bulkPath,
		DiagFile:  files.diagPath,
		ErrorFile: files.errsPath,
	}

	if !opts.Mode.IsPreview() {
		if summary.FirstKey, err = r.backend.NextAssocKey(ctx); err != nil {
			err = fmt.Errorf("seed assoc key: %w", err)
			r.abort(logger, files, err)
			r.observer.RunFinished(opts.Mode, false)
			return nil, err
		}
		fmt.Fprintf(files.diagBuf, "First %s key: %d\n", AssocTable, summary.FirstKey)
	}

	cfg := ProcessorConfig{
		Mode:     opts.Mode,
		RunDate:  opts.RunDate,
		FirstKey: summary.FirstKey,
		Errors:   files.errsBuf,
		Observer: r.observer,
	}
	if files.bulkBuf != nil {
		cfg.Output = files.bulkBuf
	}
	proc := NewProcessor(r.backend, r.backend, r.backend, cfg)

	in := WrapInput(input, opts.Encoding)
	if err := proc.ProcessAll(ctx, in); err != nil {
		err = fmt.Errorf("process %s: %w", opts.InputPath, err)
		r.abort(logger, files, err)
		r.observer.RunFinished(opts.Mode, false)
		return nil, err
	}
	fillSummary(summary, proc.State())
	summary.BytesRead = in.BytesRead()

	if err := files.flush(); err != nil {
		return nil, fmt.Errorf("flush run files: %w", err)
	}

	if !opts.Mode.IsPreview() {
		if summary.FatalCount > 0 {
			fmt.Fprint(files.errsBuf, "\nCannot process this file.  Sanity check failed\n")
		} else if opts.Load {
			loaded, err := r.load(ctx, files.bulkPath)
			if err != nil {
				summary.Success = false
				r.abort(logger, files, err)
				r.observer.RunFinished(opts.Mode, false)
				return summary, fmt.Errorf("load %s: %w", BulkFileName, err)
			}
			summary.Loaded = loaded
			fmt.Fprintf(files.diagBuf, "Copied %d rows into %s\n", loaded, AssocTable)
		}
	}

	end := r.clock()
	summary.Duration = end.Sub(start)
	writeSummary(files.errsBuf, summary, end)
	fmt.Fprintf(files.diagBuf, "\n\nEnd Date/Time: %s\n", end.Format(TimestampLayout))

	if err := files.flush(); err != nil {
		return nil, fmt.Errorf("flush run files: %w", err)
	}
	if err := files.close(); err != nil {
		return nil, fmt.Errorf("close run files: %w", err)
	}
	files.diag, files.errs, files.bulk = nil, nil, nil

	r.publish(ctx, logger, summary)
	r.observer.RunFinished(opts.Mode, summary.Success)

	logger.Info("run finished",
		"lines", summary.Lines,
		"emitted", summary.Emitted,
		"fatal_errors", summary.FatalCount,
		"loaded", summary.Loaded,
		"success", summary.Success,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	return summary, nil
}

// abort closes out a run stopped by cause. Whatever the run recorded so far
// stays in the files, followed by the failure trailer and the end time.
func (r *Runner) abort(logger *slog.Logger, files *runFiles, cause error) {
	end := r.clock().Format(TimestampLayout)
	fmt.Fprintf(files.errsBuf, "\nCannot process this file.  %v\n", cause)
	fmt.Fprint(files.errsBuf, "\nSanity check : failed\n")
	fmt.Fprintf(files.errsBuf, "\n\nEnd Date/Time: %s\n", end)
	fmt.Fprintf(files.diagBuf, "Run aborted: %v\n", cause)
	fmt.Fprintf(files.diagBuf, "\n\nEnd Date/Time: %s\n", end)
	if err := files.flush(); err != nil {
		logger.Warn("run files not flushed", "error", err)
	}
	logger.Error("run aborted", "error", cause)
}

// Preview runs a sanity check over r without touching the filesystem.
// The returned summary carries every diagnostic.
func (r *Runner) Preview(ctx context.Context, runID string, in io.Reader, enc Encoding, runDate time.Time) (*RunSummary, error) {
	start := r.clock()
	proc := NewProcessor(r.backend, r.backend, r.backend, ProcessorConfig{
		Mode:     ModePreview,
		RunDate:  runDate,
		Observer: r.observer,
	})

	wrapped := WrapInput(in, enc)
	if err := proc.ProcessAll(ctx, wrapped); err != nil {
		r.observer.RunFinished(ModePreview, false)
		return nil, fmt.Errorf("preview: %w", err)
	}

	summary := &RunSummary{RunID: runID, Mode: ModePreview}
	fillSummary(summary, proc.State())
	summary.BytesRead = wrapped.BytesRead()
	summary.Duration = r.clock().Sub(start)
	r.observer.RunFinished(ModePreview, summary.Success)
	return summary, nil
}

// ErrorReport renders the diagnostics of s in the error file format.
func (s *RunSummary) ErrorReport() string {
	var b bytes.Buffer
	for _, d := range s.Diagnostics {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	b.WriteString("\n" + s.Status() + "\n")
	if !s.Success {
		b.WriteString("Errors must be fixed before file is published.\n")
	}
	return b.String()
}

// load verifies the bulk file and copies it into the database.
func (r *Runner) load(ctx context.Context, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open bulk file: %w", err)
	}
	defer f.Close()

	records, err := VerifyBulkFile(f)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return r.backend.LoadAssociations(ctx, records)
}

// publish copies the run files to the artifact sink. Failures are logged only.
func (r *Runner) publish(ctx context.Context, logger *slog.Logger, s *RunSummary) {
	if r.sink == nil {
		return
	}
	for _, path := range []string{s.BulkFile, s.DiagFile, s.ErrorFile} {
		if path == "" {
			continue
		}
		if err := r.publishFile(ctx, s.RunID, path); err != nil {
			logger.Warn("artifact not archived", "file", path, "error", err)
		}
	}
}

func (r *Runner) publishFile(ctx context.Context, runID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return r.sink.PutArtifact(ctx, runID, filepath.Base(path), f)
}

func fillSummary(s *RunSummary, state *RunState) {
	s.Lines = state.LineNumber
	s.Emitted = state.Emitted
	s.FatalCount = state.FatalCount
	s.Warnings = state.WarningCount
	s.Diagnostics = state.Diagnostics
	s.Success = !state.HasFatal()
}

func writeSummary(w io.Writer, s *RunSummary, end time.Time) {
	if s.Success {
		fmt.Fprintf(w, "\n%s\n", s.Status())
	} else {
		fmt.Fprintf(w, "\n%s", s.Status())
		fmt.Fprint(w, "\nErrors must be fixed before file is published.\n")
	}
	fmt.Fprintf(w, "\n\nEnd Date/Time: %s\n", end.Format(TimestampLayout))
}
