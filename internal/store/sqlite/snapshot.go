package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/bulkindex/internal/core"
)

// Snapshot is the JSON export of the reference rows a run needs.
type Snapshot struct {
	References []ReferenceRow `json:"references"`
	Users      []UserRow      `json:"users"`
	Markers    []MarkerRow    `json:"markers"`
	Strains    []StrainRow    `json:"strains"`
	Alleles    []AlleleRow    `json:"alleles"`

	// LastAssocKey is the current value of the association sequence.
	LastAssocKey int64 `json:"lastAssocKey"`
}

type ReferenceRow struct {
	Key    int64  `json:"key"`
	JNumID string `json:"jnumID"`
}

type UserRow struct {
	Key   int64  `json:"key"`
	Login string `json:"login"`
}

type MarkerRow struct {
	Key       int64  `json:"key"`
	AccID     string `json:"accID"`
	StatusKey int64  `json:"statusKey"`
}

type StrainRow struct {
	Key     int64  `json:"key"`
	AccID   string `json:"accID"`
	Private bool   `json:"private"`
}

type AlleleRow struct {
	Key    int64  `json:"key"`
	AccID  string `json:"accID"`
	Status string `json:"status"`
}

// ImportSnapshot decodes a JSON snapshot from r and imports it.
func (s *Store) ImportSnapshot(ctx context.Context, r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.Import(ctx, snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Import writes snap into the database in one transaction. Existing rows
// with the same keys are replaced.
func (s *Store) Import(ctx context.Context, snap Snapshot) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	for _, r := range snap.References {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO BIB_Citation_Cache (_Refs_key, jnumID) VALUES (?, ?)`,
			r.Key, r.JNumID); err != nil {
			return fmt.Errorf("import reference %s: %w", r.JNumID, err)
		}
	}
	for _, u := range snap.Users {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO MGI_User (_User_key, login) VALUES (?, ?)`,
			u.Key, u.Login); err != nil {
			return fmt.Errorf("import user %s: %w", u.Login, err)
		}
	}
	for _, m := range snap.Markers {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO MRK_Marker (_Marker_key, _Marker_Status_key) VALUES (?, ?)`,
			m.Key, m.StatusKey); err != nil {
			return fmt.Errorf("import marker %s: %w", m.AccID, err)
		}
		if err := insertAccession(ctx, tx, m.AccID, m.Key, core.CategoryMarker); err != nil {
			return err
		}
	}
	for _, st := range snap.Strains {
		private := 0
		if st.Private {
			private = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO PRB_Strain (_Strain_key, private) VALUES (?, ?)`,
			st.Key, private); err != nil {
			return fmt.Errorf("import strain %s: %w", st.AccID, err)
		}
		if err := insertAccession(ctx, tx, st.AccID, st.Key, core.CategoryStrain); err != nil {
			return err
		}
	}
	for _, a := range snap.Alleles {
		termKey, err := termKey(ctx, tx, a.Status)
		if err != nil {
			return fmt.Errorf("import allele %s: %w", a.AccID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO ALL_Allele (_Allele_key, _Allele_Status_key) VALUES (?, ?)`,
			a.Key, termKey); err != nil {
			return fmt.Errorf("import allele %s: %w", a.AccID, err)
		}
		if err := insertAccession(ctx, tx, a.AccID, a.Key, core.CategoryAllele); err != nil {
			return err
		}
	}

	if snap.LastAssocKey > 0 {
		if _, err := tx.ExecContext(ctx,
			`UPDATE bulkindex_sequence SET value = ? WHERE name = ?`,
			snap.LastAssocKey, core.AssocSequence); err != nil {
			return fmt.Errorf("import sequence: %w", err)
		}
	}
	return tx.Commit()
}

func insertAccession(ctx context.Context, tx *sql.Tx, accID string, objectKey int64, c core.ObjectCategory) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ACC_Accession WHERE _Object_key = ? AND _MGIType_key = ? AND accID = ?`,
		objectKey, c.MGITypeKey(), accID); err != nil {
		return fmt.Errorf("import %s accession %s: %w", c, accID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ACC_Accession (accID, _Object_key, _MGIType_key, _LogicalDB_key, preferred) VALUES (?, ?, ?, 1, 1)`,
		accID, objectKey, c.MGITypeKey()); err != nil {
		return fmt.Errorf("import %s accession %s: %w", c, accID, err)
	}
	return nil
}

// termKey returns the key of a vocabulary term, adding it when missing.
func termKey(ctx context.Context, tx *sql.Tx, term string) (int64, error) {
	var key int64
	err := tx.QueryRowContext(ctx, `SELECT _Term_key FROM VOC_Term WHERE term = ?`, term).Scan(&key)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO VOC_Term (term) VALUES (?)`, term)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
