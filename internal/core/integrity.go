package core

import (
	"bufio"
	"fmt"
	"io"
)

// VerifyBulkFile reads a bulk-load file and checks it before any load step
// consumes it. Every record must parse, carry no sentinel keys, pair its
// category with the matching association type, and continue the key
// sequence of the previous record.
//
// The verified records are returned in file order. The first defect is
// reported as an *IntegrityError.
func VerifyBulkFile(r io.Reader) ([]ResolvedAssociation, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var records []ResolvedAssociation
	line := 0
	for scanner.Scan() {
		line++
		rec, err := ParseRecord(scanner.Text())
		if err != nil {
			return nil, &IntegrityError{Line: line, Reason: err.Error()}
		}
		if reason := checkRecord(rec); reason != "" {
			return nil, &IntegrityError{Line: line, Reason: reason}
		}
		if n := len(records); n > 0 && rec.AssocKey != records[n-1].AssocKey+1 {
			return nil, &IntegrityError{
				Line:   line,
				Reason: fmt.Sprintf("assoc key %d does not follow %d", rec.AssocKey, records[n-1].AssocKey),
			}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read bulk file: %w", err)
	}
	return records, nil
}

func checkRecord(rec ResolvedAssociation) string {
	switch {
	case rec.AssocKey <= 0:
		return "missing assoc key"
	case rec.ReferenceKey == SentinelKey:
		return "unresolved reference"
	case rec.ObjectKey == SentinelKey:
		return "unresolved object"
	case rec.CreatedByKey == SentinelKey || rec.ModifiedByKey == SentinelKey:
		return "unresolved user"
	}
	category := ObjectCategory(rec.MGITypeKey)
	if !category.Valid() {
		return fmt.Sprintf("unknown mgi type %d", rec.MGITypeKey)
	}
	if category.AssocTypeKey() != rec.AssocTypeKey {
		return fmt.Sprintf("assoc type %d does not match %s", rec.AssocTypeKey, category)
	}
	return ""
}
