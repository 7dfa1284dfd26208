package sqlite

// schema mirrors the columns of the MGI tables the lookups read. Only the
// columns bulkindex touches are kept.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS BIB_Citation_Cache (
		_Refs_key INTEGER PRIMARY KEY,
		jnumID    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_citation_jnum ON BIB_Citation_Cache (jnumID)`,
	`CREATE TABLE IF NOT EXISTS MGI_User (
		_User_key INTEGER PRIMARY KEY,
		login     TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS ACC_Accession (
		_Accession_key INTEGER PRIMARY KEY AUTOINCREMENT,
		accID          TEXT NOT NULL,
		_Object_key    INTEGER NOT NULL,
		_MGIType_key   INTEGER NOT NULL,
		_LogicalDB_key INTEGER NOT NULL DEFAULT 1,
		preferred      INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_accession_id ON ACC_Accession (accID, _MGIType_key)`,
	`CREATE TABLE IF NOT EXISTS MRK_Marker (
		_Marker_key        INTEGER PRIMARY KEY,
		_Marker_Status_key INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS PRB_Strain (
		_Strain_key INTEGER PRIMARY KEY,
		private     INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS VOC_Term (
		_Term_key INTEGER PRIMARY KEY,
		term      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ALL_Allele (
		_Allele_key        INTEGER PRIMARY KEY,
		_Allele_Status_key INTEGER NOT NULL REFERENCES VOC_Term (_Term_key)
	)`,
	`CREATE TABLE IF NOT EXISTS MGI_Reference_Assoc (
		_Assoc_key        INTEGER PRIMARY KEY,
		_Refs_key         INTEGER NOT NULL,
		_Object_key       INTEGER NOT NULL,
		_MGIType_key      INTEGER NOT NULL,
		_RefAssocType_key INTEGER NOT NULL,
		_CreatedBy_key    INTEGER NOT NULL,
		_ModifiedBy_key   INTEGER NOT NULL,
		creation_date     TEXT NOT NULL,
		modification_date TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bulkindex_sequence (
		name  TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	)`,
}
