package core

import (
	"context"
	"time"
)

// AssocTable is the table the bulk-load file is built for.
const AssocTable = "MGI_Reference_Assoc"

// AssocSequence is the sequence that allocates _Assoc_key values.
const AssocSequence = "mgi_reference_assoc_seq"

// BulkFileName is the name of the bulk-load file written to the output directory.
const BulkFileName = AssocTable + ".bcp"

// DateLayout is the format of the creation and modification dates in the bulk file.
const DateLayout = "01/02/2006"

// SentinelKey is the key recorded for a field that could not be resolved.
const SentinelKey int64 = 0

// Mode selects between sanity checking and producing a load file.
type Mode string

const (
	ModePreview Mode = "preview"
	ModeLoad    Mode = "load"
)

// ParseMode maps the command line mode argument to a Mode.
// Only "preview" selects the sanity check; every other value loads.
func ParseMode(s string) Mode {
	if s == string(ModePreview) {
		return ModePreview
	}
	return ModeLoad
}

// IsPreview reports whether output emission is suppressed.
func (m Mode) IsPreview() bool { return m == ModePreview }

// InputRow is one parsed line of the input file.
type InputRow struct {
	CitationID string // J: number of the reference
	ObjectID   string // MGI accession id of the marker, strain or allele
	CreatedBy  string // curator login
}

// Classification is the result of resolving an object accession id.
type Classification struct {
	ObjectKey    int64
	Category     ObjectCategory
	AssocTypeKey int64
}

// ResolvedAssociation is one row of the bulk-load file.
type ResolvedAssociation struct {
	AssocKey         int64
	ReferenceKey     int64
	ObjectKey        int64
	MGITypeKey       int64
	AssocTypeKey     int64
	CreatedByKey     int64
	ModifiedByKey    int64
	CreationDate     time.Time
	ModificationDate time.Time
}

// RunState holds the counters for one run. It is owned by a single Processor.
type RunState struct {
	LineNumber   int
	FatalCount   int
	WarningCount int
	Emitted      int
	Diagnostics  []Diagnostic
}

// HasFatal reports whether any fatal diagnostic was recorded.
func (s *RunState) HasFatal() bool { return s.FatalCount > 0 }

// ReferenceLookup finds the surrogate key of a reference by its J: number.
// Implementations return ErrNotFound when no reference matches.
type ReferenceLookup interface {
	ReferenceKey(ctx context.Context, citationID string) (int64, error)
}

// UserLookup finds the surrogate key of a user by login.
// Implementations return ErrNotFound when no user matches.
type UserLookup interface {
	UserKey(ctx context.Context, login string) (int64, error)
}

// ObjectSource returns the keys of objects in one category that carry the
// accession id as their preferred MGI id and satisfy the category's
// status or visibility rule.
type ObjectSource interface {
	FindObjects(ctx context.Context, category ObjectCategory, accID string) ([]int64, error)
}

// KeySource allocates the first _Assoc_key of a run.
type KeySource interface {
	NextAssocKey(ctx context.Context) (int64, error)
}

// BulkLoader copies a verified bulk-load file into the association table.
type BulkLoader interface {
	LoadAssociations(ctx context.Context, records []ResolvedAssociation) (int64, error)
}

// Backend bundles everything a run needs from the reference database.
type Backend interface {
	ReferenceLookup
	UserLookup
	ObjectSource
	KeySource
	BulkLoader

	// Describe returns the server and database names for the diagnostics header.
	Describe() (server, database string)
}
