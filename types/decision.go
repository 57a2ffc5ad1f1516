package types

import "time"

// ReasonCode identifies which rule produced an access decision or which
// failure produced a limitation.
type ReasonCode string

const (
	ReasonAllowed          ReasonCode = "allowed"
	ReasonCrossOrg         ReasonCode = "cross_org_denied"
	ReasonTeam             ReasonCode = "team_denied"
	ReasonClassification   ReasonCode = "classification_denied"
	ReasonClearance        ReasonCode = "clearance_denied"
	ReasonTemporal         ReasonCode = "temporal_denied"
	ReasonPredicate        ReasonCode = "predicate_denied"
	ReasonPermissionDenied ReasonCode = "permission_denied"
	ReasonUnavailable      ReasonCode = "silo_unavailable"
	ReasonTimeout          ReasonCode = "silo_timeout"
	ReasonSynthesisFailed  ReasonCode = "synthesis_failed"
)

// AccessDecision is the permission engine's verdict for one (user, silo) pair.
type AccessDecision struct {
	SiloID      string     `json:"silo_id"`
	Allow       bool       `json:"allow"`
	Reason      ReasonCode `json:"reason"`
	Detail      string     `json:"detail,omitempty"`
	EvaluatedAt time.Time  `json:"evaluated_at"`
}

// Limitation records why a candidate silo did not contribute to a result set.
// The limitations list is part of the response contract: it must never be
// empty when results fall short for any reason other than true absence of
// matches.
type Limitation struct {
	SiloID   string     `json:"silo_id"`
	SiloName string     `json:"silo_name,omitempty"`
	Reason   ReasonCode `json:"reason"`
	Detail   string     `json:"detail,omitempty"`
}
