// Package storage is the bundled silo-local search collaborator: a sqlite
// database of documents with FLOAT32_BLOB embeddings and a vec0 virtual table
// for KNN search. One store holds many silos' documents partitioned by silo
// ID; each silo searches only its own partition.
package storage

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/synapselabs/synapse/errors"
)

// Document is one stored, embeddable unit of silo content.
type Document struct {
	ID        string    `json:"id"`
	SiloID    string    `json:"silo_id"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentStore provides database operations for silo documents.
type DocumentStore struct {
	db           *sql.DB
	embeddingDim int
	logger       *zap.SugaredLogger
}

// NewDocumentStore creates the document schema if needed. embeddingDim fixes
// the vec0 column width; every saved embedding must match it.
func NewDocumentStore(db *sql.DB, embeddingDim int, logger *zap.SugaredLogger) (*DocumentStore, error) {
	if embeddingDim <= 0 {
		return nil, errors.Newf("embedding dimension must be positive, got %d", embeddingDim)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		silo_id TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding BLOB,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_silo ON documents(silo_id);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, errors.Wrap(err, "failed to create documents schema")
	}

	vecSchema := fmt.Sprintf(`
	CREATE VIRTUAL TABLE IF NOT EXISTS vec_documents USING vec0(
		document_id TEXT PRIMARY KEY,
		embedding FLOAT[%d]
	)`, embeddingDim)
	if _, err := db.Exec(vecSchema); err != nil {
		return nil, errors.Wrap(err, "failed to create vec_documents virtual table")
	}

	return &DocumentStore{db: db, embeddingDim: embeddingDim, logger: logger}, nil
}

// Save upserts a document and its vector index entry.
func (s *DocumentStore) Save(doc *Document) error {
	if doc == nil {
		return errors.New("document is nil")
	}
	if doc.SiloID == "" {
		return errors.New("document has no silo ID")
	}
	if len(doc.Embedding) > 0 && len(doc.Embedding) != s.embeddingDim {
		return errors.Newf("embedding has %d dimensions, store expects %d",
			len(doc.Embedding), s.embeddingDim)
	}

	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	var blob []byte
	if len(doc.Embedding) > 0 {
		var err error
		blob, err = sqlite_vec.SerializeFloat32(doc.Embedding)
		if err != nil {
			return errors.Wrapf(err, "failed to serialize embedding for document %s", doc.ID)
		}
	}

	_, err := s.db.Exec(`
		INSERT INTO documents (id, silo_id, content, embedding, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding,
			updated_at = excluded.updated_at`,
		doc.ID, doc.SiloID, doc.Content, blob,
		doc.CreatedAt.Format(time.RFC3339),
		doc.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to save document %s", doc.ID)
	}

	if len(blob) > 0 {
		// Virtual tables don't support UPSERT, so delete then insert.
		_, _ = s.db.Exec(`DELETE FROM vec_documents WHERE document_id = ?`, doc.ID)
		if _, err := s.db.Exec(
			`INSERT INTO vec_documents (document_id, embedding) VALUES (?, ?)`,
			doc.ID, blob,
		); err != nil {
			return errors.Wrapf(err, "failed to index document %s in vec_documents", doc.ID)
		}
	}

	s.logger.Debugw("Saved document",
		"document_id", doc.ID,
		"silo_id", doc.SiloID,
		"indexed", len(blob) > 0)
	return nil
}

// Delete removes a document and its vector index entry.
func (s *DocumentStore) Delete(documentID string) error {
	if _, err := s.db.Exec(`DELETE FROM vec_documents WHERE document_id = ?`, documentID); err != nil {
		return errors.Wrapf(err, "failed to delete document %s from vec_documents", documentID)
	}
	if _, err := s.db.Exec(`DELETE FROM documents WHERE id = ?`, documentID); err != nil {
		return errors.Wrapf(err, "failed to delete document %s", documentID)
	}
	return nil
}

// Get returns one document by ID.
func (s *DocumentStore) Get(documentID string) (*Document, error) {
	var doc Document
	var createdAt, updatedAt string
	var blob []byte

	err := s.db.QueryRow(
		`SELECT id, silo_id, content, embedding, created_at, updated_at
		 FROM documents WHERE id = ?`, documentID,
	).Scan(&doc.ID, &doc.SiloID, &doc.Content, &blob, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "document %s", documentID)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get document %s", documentID)
	}

	doc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	doc.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	doc.Embedding = deserializeFloat32(blob)
	return &doc, nil
}

// deserializeFloat32 decodes a little-endian FLOAT32_BLOB.
func deserializeFloat32(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		bits := uint32(blob[i*4]) | uint32(blob[i*4+1])<<8 |
			uint32(blob[i*4+2])<<16 | uint32(blob[i*4+3])<<24
		out[i] = math.Float32frombits(bits)
	}
	return out
}
