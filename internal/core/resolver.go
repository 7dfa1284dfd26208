package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ReferenceResolver turns J: numbers into reference keys.
// Unknown references are recorded as diagnostics and resolve to SentinelKey.
type ReferenceResolver struct {
	lookup ReferenceLookup
}

// NewReferenceResolver wraps lookup.
func NewReferenceResolver(lookup ReferenceLookup) *ReferenceResolver {
	return &ReferenceResolver{lookup: lookup}
}

// Resolve returns the reference key for citationID. Only backend failures
// are returned as errors.
func (r *ReferenceResolver) Resolve(ctx context.Context, citationID string, line int, log *ErrorLog) (int64, error) {
	return resolveKey(ctx, r.lookup.ReferenceKey, citationID, line, log, KindInvalidReference, "reference")
}

// UserResolver turns curator logins into user keys.
// Unknown users are recorded as diagnostics and resolve to SentinelKey.
type UserResolver struct {
	lookup UserLookup
}

// NewUserResolver wraps lookup.
func NewUserResolver(lookup UserLookup) *UserResolver {
	return &UserResolver{lookup: lookup}
}

// Resolve returns the user key for login. Only backend failures are returned
// as errors.
func (r *UserResolver) Resolve(ctx context.Context, login string, line int, log *ErrorLog) (int64, error) {
	return resolveKey(ctx, r.lookup.UserKey, login, line, log, KindInvalidUser, "user")
}

func resolveKey(
	ctx context.Context,
	lookup func(context.Context, string) (int64, error),
	id string,
	line int,
	log *ErrorLog,
	kind DiagnosticKind,
	what string,
) (int64, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		log.Record(Diagnostic{Line: line, Kind: kind, Value: id})
		return SentinelKey, nil
	}

	key, err := lookup(ctx, trimmed)
	if errors.Is(err, ErrNotFound) {
		log.Record(Diagnostic{Line: line, Kind: kind, Value: id})
		return SentinelKey, nil
	}
	if err != nil {
		return SentinelKey, fmt.Errorf("lookup %s %q: %w", what, trimmed, err)
	}
	return key, nil
}
