package privacy

import (
	"database/sql"
	"time"

	"github.com/synapselabs/synapse/errors"
)

// Store persists ledger entries to sqlite so budget consumption survives
// restarts and stays auditable after the process is gone.
type Store struct {
	db *sql.DB
}

// NewStore creates the ledger table if needed and returns a store bound to db.
func NewStore(db *sql.DB) (*Store, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS privacy_ledger (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts TEXT NOT NULL,
		query_id TEXT NOT NULL DEFAULT '',
		epsilon REAL NOT NULL,
		mechanism TEXT NOT NULL,
		actor TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_privacy_ledger_ts ON privacy_ledger(ts);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "failed to create privacy ledger schema")
	}
	return &Store{db: db}, nil
}

// Append writes one ledger entry. Entries are never updated or deleted.
func (s *Store) Append(entry LedgerEntry) error {
	_, err := s.db.Exec(
		`INSERT INTO privacy_ledger (ts, query_id, epsilon, mechanism, actor, note)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		entry.QueryID,
		entry.Epsilon,
		entry.Mechanism,
		entry.Actor,
		entry.Note,
	)
	if err != nil {
		return errors.Wrap(err, "failed to append ledger entry")
	}
	return nil
}

// History returns entries at or after since, oldest first. A zero since
// returns everything.
func (s *Store) History(since time.Time) ([]LedgerEntry, error) {
	rows, err := s.db.Query(
		`SELECT ts, query_id, epsilon, mechanism, actor, note
		 FROM privacy_ledger
		 WHERE ts >= ?
		 ORDER BY id ASC`,
		since.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query ledger history")
	}
	defer rows.Close()

	var entries []LedgerEntry
	for rows.Next() {
		var entry LedgerEntry
		var ts string
		if err := rows.Scan(&ts, &entry.QueryID, &entry.Epsilon, &entry.Mechanism, &entry.Actor, &entry.Note); err != nil {
			return nil, errors.Wrap(err, "failed to scan ledger entry")
		}
		entry.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, errors.Wrapf(err, "malformed ledger timestamp %q", ts)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate ledger history")
	}
	return entries, nil
}

// NetSpent sums every entry including resets. Reset entries carry the
// negation of the spent total they zeroed, so the net sum is the current
// B_spent regardless of how many resets the ledger holds.
func (s *Store) NetSpent() (float64, error) {
	var total sql.NullFloat64
	if err := s.db.QueryRow(`SELECT SUM(epsilon) FROM privacy_ledger`).Scan(&total); err != nil {
		return 0, errors.Wrap(err, "failed to sum ledger epsilon")
	}
	return total.Float64, nil
}

// SpentSince sums settled epsilon at or after since, excluding reset entries.
func (s *Store) SpentSince(since time.Time) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT SUM(epsilon) FROM privacy_ledger WHERE ts >= ? AND mechanism != ?`,
		since.UTC().Format(time.RFC3339Nano),
		MechanismReset,
	).Scan(&total)
	if err != nil {
		return 0, errors.Wrap(err, "failed to sum ledger epsilon")
	}
	return total.Float64, nil
}
