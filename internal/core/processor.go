package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// inputFields is the number of tab-separated fields an input line must have.
const inputFields = 3

// maxLineSize bounds a single input line.
const maxLineSize = 1024 * 1024

// ProcessorConfig configures a Processor for one run.
type ProcessorConfig struct {
	Mode     Mode
	RunDate  time.Time // creation and modification date of every record
	FirstKey int64     // first _Assoc_key, ignored in preview mode
	Output   io.Writer // bulk-load file, ignored in preview mode
	Errors   io.Writer // error file, may be nil
	Observer Observer
}

// Processor validates input lines and, outside preview mode, writes one
// bulk-load record per well-formed line.
//
// Data defects are recorded as diagnostics and never stop the run. Records
// are written even when a field resolved to SentinelKey; the fatal count in
// State decides later whether the file may be loaded.
type Processor struct {
	refs       *ReferenceResolver
	users      *UserResolver
	classifier *Classifier

	mode     Mode
	runDate  time.Time
	nextKey  int64
	out      io.Writer
	log      *ErrorLog
	state    *RunState
	observer Observer
}

// NewProcessor builds a processor over the three lookups.
func NewProcessor(refs ReferenceLookup, users UserLookup, objects ObjectSource, cfg ProcessorConfig) *Processor {
	observer := cfg.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	state := &RunState{}
	return &Processor{
		refs:       NewReferenceResolver(refs),
		users:      NewUserResolver(users),
		classifier: NewClassifier(objects),
		mode:       cfg.Mode,
		runDate:    cfg.RunDate,
		nextKey:    cfg.FirstKey,
		out:        cfg.Output,
		log:        NewErrorLog(cfg.Errors, state, observer),
		state:      state,
		observer:   observer,
	}
}

// State returns the run counters.
func (p *Processor) State() *RunState { return p.state }

// NextKey returns the key the next emitted record would get.
func (p *Processor) NextKey() int64 { return p.nextKey }

// ProcessLine handles one input line. The returned error is non-nil only for
// backend or write failures; those end the run.
func (p *Processor) ProcessLine(ctx context.Context, raw string, line int) error {
	p.state.LineNumber = line
	p.observer.LineProcessed()

	row, ok := splitLine(raw)
	if !ok {
		p.log.Record(Diagnostic{Line: line, Kind: KindInvalidLine, Value: strings.TrimRight(raw, "\r\n")})
		return p.log.Err()
	}

	refKey, err := p.refs.Resolve(ctx, row.CitationID, line, p.log)
	if err != nil {
		return fmt.Errorf("line %d: %w", line, err)
	}
	userKey, err := p.users.Resolve(ctx, row.CreatedBy, line, p.log)
	if err != nil {
		return fmt.Errorf("line %d: %w", line, err)
	}
	class, err := p.classify(ctx, row.ObjectID, line)
	if err != nil {
		return fmt.Errorf("line %d: %w", line, err)
	}
	if err := p.log.Err(); err != nil {
		return err
	}

	if p.mode.IsPreview() {
		return nil
	}

	rec := ResolvedAssociation{
		AssocKey:         p.nextKey,
		ReferenceKey:     refKey,
		ObjectKey:        class.ObjectKey,
		MGITypeKey:       class.Category.MGITypeKey(),
		AssocTypeKey:     class.AssocTypeKey,
		CreatedByKey:     userKey,
		ModifiedByKey:    userKey,
		CreationDate:     p.runDate,
		ModificationDate: p.runDate,
	}
	if p.out != nil {
		if _, err := io.WriteString(p.out, rec.Format()+"\n"); err != nil {
			return fmt.Errorf("write bulk file: %w", err)
		}
	}
	p.nextKey++
	p.state.Emitted++
	p.observer.RecordEmitted()
	return nil
}

// classify records a diagnostic for unclassifiable ids and returns a zero
// Classification for them.
func (p *Processor) classify(ctx context.Context, objectID string, line int) (Classification, error) {
	class, err := p.classifier.Classify(ctx, objectID)
	switch {
	case err == nil:
		return class, nil
	case errors.Is(err, ErrInvalidObject):
		p.log.Record(Diagnostic{Line: line, Kind: KindInvalidObject, Value: objectID})
		return Classification{}, nil
	case errors.Is(err, ErrAmbiguousObject):
		p.log.Record(Diagnostic{Line: line, Kind: KindAmbiguousObject, Value: objectID})
		return Classification{}, nil
	default:
		return Classification{}, err
	}
}

// ProcessAll feeds every line of r to ProcessLine, numbering lines from 1.
func (p *Processor) ProcessAll(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		if err := p.ProcessLine(ctx, scanner.Text(), line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input line %d: %w", line+1, err)
	}
	return nil
}

// splitLine splits raw into its three fields. Fields past the third are ignored.
func splitLine(raw string) (InputRow, bool) {
	raw = strings.TrimRight(raw, "\r\n")
	tokens := strings.Split(raw, "\t")
	if len(tokens) < inputFields {
		return InputRow{}, false
	}
	return InputRow{
		CitationID: tokens[0],
		ObjectID:   tokens[1],
		CreatedBy:  tokens[2],
	}, true
}
