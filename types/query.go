package types

import "time"

// Attribution identifies the provenance of a result for the synthesized
// narrative.
type Attribution struct {
	SiloName     string `json:"silo_name"`
	Team         string `json:"team"`
	Organization string `json:"organization"`
}

// SearchHit is what a silo-local search collaborator returns. The hit stays
// inside the silo's trust boundary until the router has authorized the silo
// and reserved budget for its contribution.
type SearchHit struct {
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	RawScore   float64   `json:"raw_score"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// KnowledgeResult is one noised, attributed entry of a federated result set.
// Created per query and discarded after the response: result IDs carry no
// cross-query identity.
type KnowledgeResult struct {
	ID             string         `json:"id"`
	SiloID         string         `json:"silo_id"`
	Content        string         `json:"content"`
	RelevanceScore float64        `json:"relevance_score"` // post-noise
	PrivacyCost    float64        `json:"privacy_cost"`    // epsilon spent on this score
	AccessLevel    Classification `json:"access_level"`
	CreatedAt      time.Time      `json:"created_at"` // document recency, used in tie-breaks
	Attribution    Attribution    `json:"attribution"`
}

// QueryRequest enters the router at the system boundary.
type QueryRequest struct {
	Query      string      `json:"query"`
	Embedding  []float32   `json:"embedding,omitempty"`
	User       UserContext `json:"user"`
	MaxResults int         `json:"max_results"`
	// EpsilonBudget is the explicit per-query budget request.
	// Zero means the system-wide default.
	EpsilonBudget float64  `json:"epsilon_budget,omitempty"`
	IncludeSilos  []string `json:"include_silos,omitempty"`
	ExcludeSilos  []string `json:"exclude_silos,omitempty"`
}

// QueryResponse is the merged, ranked, noise-protected answer.
type QueryResponse struct {
	QueryID      string            `json:"query_id"`
	Results      []KnowledgeResult `json:"results"`
	Limitations  []Limitation      `json:"limitations,omitempty"`
	EpsilonSpent float64           `json:"epsilon_spent"`
	Elapsed      time.Duration     `json:"elapsed"`
}

// SynthesisRequest asks the synthesizer to compose an attributed narrative
// from results that are already permission-filtered. CandidateSilos and
// ExcludedSilos feed the exclusion fraction of the confidence score.
type SynthesisRequest struct {
	Query          string            `json:"query"`
	Results        []KnowledgeResult `json:"results"`
	User           UserContext       `json:"user"`
	Limitations    []Limitation      `json:"limitations,omitempty"`
	CandidateSilos int               `json:"candidate_silos"`
}

// SynthesisOutput is the attributed composite answer.
type SynthesisOutput struct {
	Narrative   string   `json:"narrative"`
	Confidence  float64  `json:"confidence"` // in [0,1]
	SourceCount int      `json:"source_count"`
	Limitations []string `json:"limitations,omitempty"`
}
