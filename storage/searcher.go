package storage

import (
	"context"
	"sort"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/synapselabs/synapse/errors"
	"github.com/synapselabs/synapse/types"
)

// SiloSearcher searches one silo's partition of a DocumentStore. It satisfies
// the router's Searcher boundary: everything it returns stays within the
// silo's trust boundary until the router noises it.
type SiloSearcher struct {
	store  *DocumentStore
	siloID string
}

// NewSiloSearcher binds a searcher to one silo's partition.
func NewSiloSearcher(store *DocumentStore, siloID string) *SiloSearcher {
	return &SiloSearcher{store: store, siloID: siloID}
}

// Search runs a KNN vector search when the query carries an embedding, and a
// term-overlap text search otherwise. Raw scores are in [0,1]; the router is
// responsible for noising them before they leave the silo boundary.
func (s *SiloSearcher) Search(ctx context.Context, query string, embedding []float32, limit int) ([]types.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	if len(embedding) > 0 {
		return s.vectorSearch(ctx, embedding, limit)
	}
	return s.textSearch(ctx, query, limit)
}

func (s *SiloSearcher) vectorSearch(ctx context.Context, embedding []float32, limit int) ([]types.SearchHit, error) {
	if len(embedding) != s.store.embeddingDim {
		return nil, errors.Newf("query embedding has %d dimensions, silo index expects %d",
			len(embedding), s.store.embeddingDim)
	}

	blob, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize query embedding")
	}

	// KNN over the whole vec0 index, then filter to this silo's partition.
	// Over-fetch so the partition filter still fills the limit.
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT d.id, d.content, d.embedding, d.created_at, v.distance
		FROM (
			SELECT document_id, distance
			FROM vec_documents
			WHERE embedding MATCH ? AND k = ?
			ORDER BY distance
		) v
		JOIN documents d ON d.id = v.document_id
		WHERE d.silo_id = ?
		ORDER BY v.distance
		LIMIT ?`,
		blob, limit*8, s.siloID, limit,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "vector search failed for silo %s", s.siloID)
	}
	defer rows.Close()

	var hits []types.SearchHit
	for rows.Next() {
		var hit types.SearchHit
		var docBlob []byte
		var createdAt string
		var distance float64
		if err := rows.Scan(&hit.DocumentID, &hit.Content, &docBlob, &createdAt, &distance); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		hit.Timestamp, _ = time.Parse(time.RFC3339, createdAt)
		hit.Embedding = deserializeFloat32(docBlob)
		// L2 distance on normalized vectors lies in [0,2]; fold to [0,1].
		hit.RawScore = 1.0 - distance/2.0
		if hit.RawScore < 0 {
			hit.RawScore = 0
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "vector search iteration failed for silo %s", s.siloID)
	}
	return hits, nil
}

// textSearch scores documents by the fraction of query terms they contain.
func (s *SiloSearcher) textSearch(ctx context.Context, query string, limit int) ([]types.SearchHit, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	rows, err := s.store.db.QueryContext(ctx,
		`SELECT id, content, created_at FROM documents WHERE silo_id = ?`, s.siloID)
	if err != nil {
		return nil, errors.Wrapf(err, "text search failed for silo %s", s.siloID)
	}
	defer rows.Close()

	var hits []types.SearchHit
	for rows.Next() {
		var hit types.SearchHit
		var createdAt string
		if err := rows.Scan(&hit.DocumentID, &hit.Content, &createdAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan text search result")
		}

		lowered := strings.ToLower(hit.Content)
		matched := 0
		for _, term := range terms {
			if strings.Contains(lowered, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hit.RawScore = float64(matched) / float64(len(terms))
		hit.Timestamp, _ = time.Parse(time.RFC3339, createdAt)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(err, "text search iteration failed for silo %s", s.siloID)
	}

	// Highest term coverage first, recent documents break ties.
	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].RawScore != hits[b].RawScore {
			return hits[a].RawScore > hits[b].RawScore
		}
		return hits[a].Timestamp.After(hits[b].Timestamp)
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}
