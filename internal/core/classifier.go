package core

import (
	"context"
	"fmt"
	"strings"
)

// Classifier resolves an MGI accession id to exactly one marker, strain or allele.
type Classifier struct {
	source ObjectSource
}

// NewClassifier returns a classifier querying source.
func NewClassifier(source ObjectSource) *Classifier {
	return &Classifier{source: source}
}

// Classify queries every category for a valid object carrying objectID and
// takes the union of the matches.
//
// An empty union fails with ErrInvalidObject, more than one match with
// ErrAmbiguousObject; both arrive wrapped in a *ClassifyError. Objects that
// exist but fail their category's status or visibility rule are never
// returned by the source, so they count as not found. Any other error comes
// from the source itself.
func (c *Classifier) Classify(ctx context.Context, objectID string) (Classification, error) {
	objectID = strings.TrimSpace(objectID)
	if objectID == "" {
		return Classification{}, &ClassifyError{ObjectID: objectID, Err: ErrInvalidObject}
	}

	var matches []Classification
	for _, category := range Categories {
		keys, err := c.source.FindObjects(ctx, category, objectID)
		if err != nil {
			return Classification{}, fmt.Errorf("find %s %q: %w", category, objectID, err)
		}
		for _, key := range keys {
			matches = append(matches, Classification{
				ObjectKey:    key,
				Category:     category,
				AssocTypeKey: category.AssocTypeKey(),
			})
		}
	}

	switch len(matches) {
	case 0:
		return Classification{}, &ClassifyError{ObjectID: objectID, Err: ErrInvalidObject}
	case 1:
		return matches[0], nil
	default:
		return Classification{}, &ClassifyError{ObjectID: objectID, Matches: len(matches), Err: ErrAmbiguousObject}
	}
}
