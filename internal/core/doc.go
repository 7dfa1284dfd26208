// Package core validates curator bulk index files and builds the
// MGI_Reference_Assoc bulk-load file from them.
//
// It has no database, HTTP or CLI dependencies; everything it needs from the
// reference database arrives through the lookup interfaces in types.go, so it
// can be driven by the command line, the preview service or tests alike.
//
// # Input
//
// One association per line, three tab-separated fields:
//
//	J:12345<TAB>MGI:98765<TAB>jdoe
//
// # Processing
//
// For every line the [Processor] resolves the reference, the user and the
// object, in that order, and attempts all three even when an earlier one
// fails so a line reports every defect it has. Object ids are classified by
// the [Classifier] into marker, strain or allele; the category alone decides
// the association type.
//
// Defects never stop a run. They are written to the error file as
// line-tagged [Diagnostic] entries and counted in [RunState]. Outside preview
// mode a record is written for every well-formed line, with key 0 for any
// field that did not resolve; the fatal count decides at the end whether the
// file may be loaded, and [VerifyBulkFile] rejects sentinel keys before any
// load reads the file.
//
// # Output
//
// Nine pipe-delimited fields per record:
//
//	assocKey|refKey|objectKey|mgiTypeKey|assocTypeKey|createdBy|modifiedBy|MM/DD/YYYY|MM/DD/YYYY
//
// Assoc keys start at the value drawn from the sequence at the start of the
// run and increase by one per record.
package core
