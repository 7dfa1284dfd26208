package sqlite

import (
	"fmt"

	"github.com/JonMunkholm/bulkindex/internal/core"
)

const (
	referenceKeyQuery = `SELECT _Refs_key FROM BIB_Citation_Cache WHERE jnumID = ?`
	userKeyQuery      = `SELECT _User_key FROM MGI_User WHERE login = ?`

	ensureSequenceQuery = `INSERT INTO bulkindex_sequence (name, value) VALUES (?, 0) ON CONFLICT (name) DO NOTHING`
	nextvalQuery        = `UPDATE bulkindex_sequence SET value = value + 1 WHERE name = ? RETURNING value`
	setvalQuery         = `UPDATE bulkindex_sequence
		SET value = COALESCE((SELECT max(_Assoc_key) FROM MGI_Reference_Assoc), value)
		WHERE name = ?`

	insertAssocQuery = `INSERT INTO MGI_Reference_Assoc (
		_Assoc_key, _Refs_key, _Object_key, _MGIType_key, _RefAssocType_key,
		_CreatedBy_key, _ModifiedBy_key, creation_date, modification_date
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// sqliteDateLayout stores dates the way the snapshot export writes them.
const sqliteDateLayout = "2006-01-02 15:04:05"

var objectQueries = map[core.ObjectCategory]string{
	core.CategoryMarker: fmt.Sprintf(`SELECT a._Object_key
		FROM ACC_Accession a
		JOIN MRK_Marker m ON m._Marker_key = a._Object_key
		WHERE a.accID = ? AND a._MGIType_key = %d AND a._LogicalDB_key = 1
		  AND a.preferred = 1 AND m._Marker_Status_key = 1`, core.CategoryMarker.MGITypeKey()),

	core.CategoryStrain: fmt.Sprintf(`SELECT a._Object_key
		FROM ACC_Accession a
		JOIN PRB_Strain s ON s._Strain_key = a._Object_key
		WHERE a.accID = ? AND a._MGIType_key = %d AND a._LogicalDB_key = 1
		  AND a.preferred = 1 AND s.private = 0`, core.CategoryStrain.MGITypeKey()),

	core.CategoryAllele: fmt.Sprintf(`SELECT a._Object_key
		FROM ACC_Accession a
		JOIN ALL_Allele al ON al._Allele_key = a._Object_key
		JOIN VOC_Term t ON t._Term_key = al._Allele_Status_key
		WHERE a.accID = ? AND a._MGIType_key = %d AND a._LogicalDB_key = 1
		  AND a.preferred = 1 AND t.term IN ('Approved', 'Autoload')`, core.CategoryAllele.MGITypeKey()),
}
