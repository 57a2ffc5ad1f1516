package silo

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/synapselabs/synapse/errors"
	"github.com/synapselabs/synapse/types"
)

// Store persists silo metadata so registrations survive process restarts.
// The in-memory Registry remains the read path; the store only loads and
// saves.
type Store struct {
	db *sql.DB
}

// NewStore creates the silo metadata table if needed.
func NewStore(db *sql.DB) (*Store, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS silos (
		id TEXT PRIMARY KEY,
		metadata TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "failed to create silos schema")
	}
	return &Store{db: db}, nil
}

// Save upserts one silo's metadata.
func (s *Store) Save(meta types.SiloMetadata) error {
	blob, err := json.Marshal(meta)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal silo %s", meta.ID)
	}
	_, err = s.db.Exec(`
		INSERT INTO silos (id, metadata, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		meta.ID, string(blob), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save silo %s", meta.ID)
	}
	return nil
}

// Delete removes one silo's metadata.
func (s *Store) Delete(siloID string) error {
	if _, err := s.db.Exec(`DELETE FROM silos WHERE id = ?`, siloID); err != nil {
		return errors.Wrapf(err, "failed to delete silo %s", siloID)
	}
	return nil
}

// LoadAll returns every persisted silo.
func (s *Store) LoadAll() ([]types.SiloMetadata, error) {
	rows, err := s.db.Query(`SELECT metadata FROM silos ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load silos")
	}
	defer rows.Close()

	var silos []types.SiloMetadata
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, errors.Wrap(err, "failed to scan silo row")
		}
		var meta types.SiloMetadata
		if err := json.Unmarshal([]byte(blob), &meta); err != nil {
			return nil, errors.Wrap(err, "malformed silo metadata")
		}
		silos = append(silos, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate silos")
	}
	return silos, nil
}
