package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cardiowatch/cardiowatch/pkg/types"
)

// SQLite is a Store backed by a SQLite database file. Driver failures are
// reported wrapped in types.ErrStorageUnavailable so callers can tell them
// apart from bad input.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, unavailable("open", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) createTables() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS measurement (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id INTEGER NOT NULL,
		value REAL NOT NULL,
		type TEXT NOT NULL,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_measurement_patient_ts
		ON measurement(patient_id, timestamp);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return unavailable("create tables", err)
	}
	return nil
}

// Append inserts rec.
func (s *SQLite) Append(rec types.MeasurementRecord) error {
	if !rec.Type.Valid() {
		return fmt.Errorf("store: append record type %q: %w", rec.Type, types.ErrInvalidInput)
	}
	_, err := s.db.Exec(
		`INSERT INTO measurement (patient_id, value, type, timestamp) VALUES (?, ?, ?, ?)`,
		rec.PatientID, rec.Value, string(rec.Type), rec.Timestamp,
	)
	if err != nil {
		return unavailable("append", err)
	}
	return nil
}

// Query returns the patient's records in [start, end), oldest first.
func (s *SQLite) Query(patientID int, start, end int64) ([]types.MeasurementRecord, error) {
	out := []types.MeasurementRecord{}
	if end <= start {
		return out, nil
	}
	rows, err := s.db.Query(`
		SELECT patient_id, value, type, timestamp
		FROM measurement
		WHERE patient_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp, id`,
		patientID, start, end,
	)
	if err != nil {
		return nil, unavailable("query", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec types.MeasurementRecord
			typ string
		)
		if err := rows.Scan(&rec.PatientID, &rec.Value, &typ, &rec.Timestamp); err != nil {
			return nil, unavailable("scan", err)
		}
		rec.Type = types.RecordType(typ)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("query rows", err)
	}
	return out, nil
}

// Patients returns the distinct patient ids in the table.
func (s *SQLite) Patients() ([]int, error) {
	rows, err := s.db.Query(`SELECT DISTINCT patient_id FROM measurement ORDER BY patient_id`)
	if err != nil {
		return nil, unavailable("patients", err)
	}
	defer rows.Close()

	ids := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("scan patient", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("patients rows", err)
	}
	return ids, nil
}

// Count returns the number of stored records, or 0 if the table cannot be read.
func (s *SQLite) Count() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM measurement`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Prune deletes records older than before.
func (s *SQLite) Prune(before int64) (int, error) {
	res, err := s.db.Exec(`DELETE FROM measurement WHERE timestamp < ?`, before)
	if err != nil {
		return 0, unavailable("prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("prune rows affected", err)
	}
	return int(n), nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("store: sqlite %s: %w: %w", op, types.ErrStorageUnavailable, err)
}
