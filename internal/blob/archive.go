package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// Archiver publishes run artifacts under <prefix>/<runID>/<name>.
type Archiver struct {
	store  Store
	prefix string
}

// NewArchiver wraps store. prefix may be empty.
func NewArchiver(store Store, prefix string) *Archiver {
	return &Archiver{store: store, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key of an artifact.
func (a *Archiver) Key(runID, name string) string {
	return path.Join(a.prefix, runID, name)
}

// PutArtifact stores one artifact of a run.
func (a *Archiver) PutArtifact(ctx context.Context, runID, name string, r io.Reader) error {
	if err := validateSegment(runID); err != nil {
		return fmt.Errorf("run id: %w", err)
	}
	if err := validateSegment(name); err != nil {
		return fmt.Errorf("artifact name: %w", err)
	}
	_, err := a.store.Put(ctx, a.Key(runID, name), r, PutOptions{
		ContentType: "text/plain; charset=utf-8",
		Metadata:    map[string]string{"run-id": runID},
	})
	return err
}

// OpenArtifact returns the content of one artifact.
func (a *Archiver) OpenArtifact(ctx context.Context, runID, name string) (Info, io.ReadCloser, error) {
	if err := validateSegment(runID); err != nil {
		return Info{}, nil, fmt.Errorf("run id: %w", err)
	}
	if err := validateSegment(name); err != nil {
		return Info{}, nil, fmt.Errorf("artifact name: %w", err)
	}
	return a.store.Get(ctx, a.Key(runID, name))
}

// ListArtifacts returns the artifacts of a run.
func (a *Archiver) ListArtifacts(ctx context.Context, runID string) ([]Info, error) {
	if err := validateSegment(runID); err != nil {
		return nil, fmt.Errorf("run id: %w", err)
	}
	return a.store.List(ctx, a.Key(runID, "")+"/")
}

// validateSegment rejects values that would change the key layout.
func validateSegment(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("invalid segment %q", s)
	}
	return nil
}
