package postgres

import (
	"fmt"

	"github.com/JonMunkholm/bulkindex/internal/core"
)

const (
	// mgdLogicalDB is the logical database of MGI accession ids.
	mgdLogicalDB = 1

	markerStatusOfficial = 1
)

const referenceKeyQuery = `
SELECT _Refs_key
FROM BIB_Citation_Cache
WHERE jnumID = $1`

const userKeyQuery = `
SELECT _User_key
FROM MGI_User
WHERE login = $1`

const nextAssocKeyQuery = `SELECT nextval('` + core.AssocSequence + `')`

const resetSequenceQuery = `
SELECT setval('` + core.AssocSequence + `', (SELECT max(_Assoc_key) FROM ` + core.AssocTable + `))`

// assocColumns is the column order of the bulk-load file.
var assocColumns = []string{
	"_assoc_key",
	"_refs_key",
	"_object_key",
	"_mgitype_key",
	"_refassoctype_key",
	"_createdby_key",
	"_modifiedby_key",
	"creation_date",
	"modification_date",
}

// objectQueries selects the keys of objects carrying an accession id as
// their preferred MGI id, restricted to the objects a curator may index.
var objectQueries = map[core.ObjectCategory]string{
	core.CategoryMarker: fmt.Sprintf(`
SELECT a._Object_key
FROM ACC_Accession a
JOIN MRK_Marker m ON m._Marker_key = a._Object_key
WHERE a.accID = $1
  AND a._MGIType_key = %d
  AND a._LogicalDB_key = %d
  AND a.preferred = 1
  AND m._Marker_Status_key = %d`,
		core.CategoryMarker.MGITypeKey(), mgdLogicalDB, markerStatusOfficial),

	core.CategoryStrain: fmt.Sprintf(`
SELECT a._Object_key
FROM ACC_Accession a
JOIN PRB_Strain s ON s._Strain_key = a._Object_key
WHERE a.accID = $1
  AND a._MGIType_key = %d
  AND a._LogicalDB_key = %d
  AND a.preferred = 1
  AND s.private = 0`,
		core.CategoryStrain.MGITypeKey(), mgdLogicalDB),

	core.CategoryAllele: fmt.Sprintf(`
SELECT a._Object_key
FROM ACC_Accession a
JOIN ALL_Allele al ON al._Allele_key = a._Object_key
JOIN VOC_Term t ON t._Term_key = al._Allele_Status_key
WHERE a.accID = $1
  AND a._MGIType_key = %d
  AND a._LogicalDB_key = %d
  AND a.preferred = 1
  AND t.term IN ('Approved', 'Autoload')`,
		core.CategoryAllele.MGITypeKey(), mgdLogicalDB),
}

func objectQuery(c core.ObjectCategory) (string, error) {
	q, ok := objectQueries[c]
	if !ok {
		return "", fmt.Errorf("no object query for category %d", int64(c))
	}
	return q, nil
}
