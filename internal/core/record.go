package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FieldDelimiter separates columns in the bulk-load file.
const FieldDelimiter = "|"

// recordFields is the number of columns of a bulk-load record.
const recordFields = 9

// Format serializes the association as one bulk-load line without the newline.
func (a ResolvedAssociation) Format() string {
	fields := [recordFields]string{
		strconv.FormatInt(a.AssocKey, 10),
		strconv.FormatInt(a.ReferenceKey, 10),
		strconv.FormatInt(a.ObjectKey, 10),
		strconv.FormatInt(a.MGITypeKey, 10),
		strconv.FormatInt(a.AssocTypeKey, 10),
		strconv.FormatInt(a.CreatedByKey, 10),
		strconv.FormatInt(a.ModifiedByKey, 10),
		a.CreationDate.Format(DateLayout),
		a.ModificationDate.Format(DateLayout),
	}
	return strings.Join(fields[:], FieldDelimiter)
}

// ParseRecord parses one bulk-load line produced by Format.
func ParseRecord(line string) (ResolvedAssociation, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, FieldDelimiter)
	if len(fields) != recordFields {
		return ResolvedAssociation{}, fmt.Errorf("expected %d fields, got %d", recordFields, len(fields))
	}

	var keys [7]int64
	for i := range keys {
		k, err := strconv.ParseInt(fields[i], 10, 64)
		if err != nil {
			return ResolvedAssociation{}, fmt.Errorf("field %d: invalid key %q", i+1, fields[i])
		}
		keys[i] = k
	}

	created, err := time.Parse(DateLayout, fields[7])
	if err != nil {
		return ResolvedAssociation{}, fmt.Errorf("field 8: invalid date %q", fields[7])
	}
	modified, err := time.Parse(DateLayout, fields[8])
	if err != nil {
		return ResolvedAssociation{}, fmt.Errorf("field 9: invalid date %q", fields[8])
	}

	return ResolvedAssociation{
		AssocKey:         keys[0],
		ReferenceKey:     keys[1],
		ObjectKey:        keys[2],
		MGITypeKey:       keys[3],
		AssocTypeKey:     keys[4],
		CreatedByKey:     keys[5],
		ModifiedByKey:    keys[6],
		CreationDate:     created,
		ModificationDate: modified,
	}, nil
}
