package core

import "fmt"

// ObjectCategory is the kind of object a reference can be associated with.
// The value is the MGI type key of the category.
type ObjectCategory int64

const (
	CategoryMarker ObjectCategory = 2
	CategoryStrain ObjectCategory = 10
	CategoryAllele ObjectCategory = 11
)

// Categories lists every category in the order they are queried.
var Categories = []ObjectCategory{CategoryMarker, CategoryStrain, CategoryAllele}

// Reference association type keys, one per category.
const (
	AssocTypeMarker int64 = 1018
	AssocTypeStrain int64 = 1031
	AssocTypeAllele int64 = 1013
)

// MGITypeKey returns the numeric category code written to the bulk file.
func (c ObjectCategory) MGITypeKey() int64 { return int64(c) }

// AssocTypeKey returns the fixed association type for the category.
// It returns 0 for an unknown category.
func (c ObjectCategory) AssocTypeKey() int64 {
	switch c {
	case CategoryMarker:
		return AssocTypeMarker
	case CategoryStrain:
		return AssocTypeStrain
	case CategoryAllele:
		return AssocTypeAllele
	default:
		return 0
	}
}

// Valid reports whether c is one of the supported categories.
func (c ObjectCategory) Valid() bool { return c.AssocTypeKey() != 0 }

func (c ObjectCategory) String() string {
	switch c {
	case CategoryMarker:
		return "marker"
	case CategoryStrain:
		return "strain"
	case CategoryAllele:
		return "allele"
	default:
		return fmt.Sprintf("category(%d)", int64(c))
	}
}
