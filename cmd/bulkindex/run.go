package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/bulkindex/internal/core"
	"github.com/JonMunkholm/bulkindex/internal/logging"
	"github.com/JonMunkholm/bulkindex/internal/metrics"
)

type runFlags struct {
	load     bool
	encoding string
	runDate  string
	runID    string
	jsonOut  bool
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run <inputFile> <mode>",
		Short: "Process an input file in preview or load mode",
		Long: `Process a tab-delimited file of J: number, MGI id and curator login.

Mode "preview" only sanity checks the file and writes <inputFile>.diagnostics
and <inputFile>.error next to it. Any other mode also writes the bulk-load file
to OUTPUTDIR and, with --load or BULKLOAD_ENABLED, copies it into the database
when no line had a fatal error.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(2)(cmd, args); err != nil {
				return withCode(exitUsage, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("load") {
				f.load = a.cfg.Run.LoadEnabled
			}
			if f.encoding == "" {
				f.encoding = a.cfg.Run.Encoding
			}
			return a.run(cmd.Context(), cmd.OutOrStdout(), args[0], args[1], f)
		},
	}

	cmd.Flags().BoolVar(&f.load, "load", false, "Copy a clean bulk file into the database (default from BULKLOAD_ENABLED)")
	cmd.Flags().StringVar(&f.encoding, "encoding", "", "Input encoding: latin1 or utf-8 (default from INPUT_ENCODING)")
	cmd.Flags().StringVar(&f.runDate, "run-date", "", "Creation date written into records, MM/DD/YYYY (default today)")
	cmd.Flags().StringVar(&f.runID, "run-id", "", "Run id used in logs and archive keys (default random UUID)")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "Print the run summary as JSON")
	return cmd
}

func (a *app) run(ctx context.Context, out io.Writer, inputFile, mode string, f runFlags) error {
	enc, err := core.ParseEncoding(f.encoding)
	if err != nil {
		return withCode(exitUsage, err)
	}
	runDate, err := parseRunDate(f.runDate, time.Now())
	if err != nil {
		return withCode(exitUsage, err)
	}
	runID := f.runID
	if runID == "" {
		runID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Run.Timeout)
	defer cancel()
	ctx = logging.WithRun(ctx, runID)

	be, release, err := openBackend(ctx, a.cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to reference database: %w", err)
	}
	defer release()

	archiver, err := openArchiver(ctx, a.cfg.Archive)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder(false)
	opts := []core.RunnerOption{core.WithObserver(recorder)}
	if archiver != nil {
		opts = append(opts, core.WithArtifactSink(archiver))
	}
	runner := core.NewRunner(be, opts...)

	summary, runErr := runner.Run(ctx, core.RunOptions{
		RunID:     runID,
		InputPath: a.cfg.Run.InputPath(inputFile),
		Mode:      core.ParseMode(mode),
		Encoding:  enc,
		OutputDir: a.cfg.Run.OutputDir,
		DiagPath:  a.cfg.Run.DiagPath(),
		ErrorPath: a.cfg.Run.ErrorPath(),
		Load:      f.load,
		RunDate:   runDate,
	})

	if err := recorder.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		logging.FromContext(ctx).Warn("metrics textfile not written", "path", a.cfg.Metrics.Textfile, "error", err)
	}
	if runErr != nil {
		return runErr
	}
	return printSummary(out, summary, f.jsonOut)
}

// parseRunDate parses MM/DD/YYYY. An empty value selects the date of now.
func parseRunDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(core.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --run-date %q, want MM/DD/YYYY", s)
	}
	return t, nil
}

func printSummary(w io.Writer, s *core.RunSummary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	fmt.Fprintln(w, s.Status())
	fmt.Fprintf(w, "run id:       %s\n", s.RunID)
	fmt.Fprintf(w, "lines:        %d\n", s.Lines)
	fmt.Fprintf(w, "fatal errors: %d\n", s.FatalCount)
	if !s.Mode.IsPreview() {
		fmt.Fprintf(w, "records:      %d\n", s.Emitted)
		fmt.Fprintf(w, "loaded:       %d\n", s.Loaded)
		if s.BulkFile != "" {
			fmt.Fprintf(w, "bulk file:    %s\n", s.BulkFile)
		}
	}
	fmt.Fprintf(w, "diagnostics:  %s\n", s.DiagFile)
	fmt.Fprintf(w, "error file:   %s\n", s.ErrorFile)
	if !s.Success {
		slog.Warn("sanity check failed", "run_id", s.RunID, "fatal_errors", s.FatalCount, "error_file", s.ErrorFile)
	}
	return nil
}
