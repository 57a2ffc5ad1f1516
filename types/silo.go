package types

import "time"

// SiloType categorizes what kind of organizational partition a silo is.
// Used only for candidate narrowing; never for access decisions.
type SiloType string

const (
	SiloCodeRepository SiloType = "code_repository"
	SiloDocumentation  SiloType = "documentation"
	SiloKnowledgeBase  SiloType = "knowledge_base"
	SiloChatHistory    SiloType = "chat_history"
	SiloIssueTracker   SiloType = "issue_tracker"
)

// RuleKind tags the closed set of access rule variants. Rules are evaluated
// through a fixed dispatch order in the permission engine, never through
// reflection over arbitrary callables.
type RuleKind string

const (
	RuleTeam      RuleKind = "team"
	RuleRole      RuleKind = "role"
	RuleTemporal  RuleKind = "temporal"
	RulePredicate RuleKind = "predicate"
)

// TimeWindow restricts access to a daily hour range in UTC.
// StartHour is inclusive, EndHour exclusive.
type TimeWindow struct {
	StartHour int `json:"start_hour"`
	EndHour   int `json:"end_hour"`
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	h := t.UTC().Hour()
	return h >= w.StartHour && h < w.EndHour
}

// PredicateRule is the organization-specific custom rule variant.
// Each field is an independent condition; a populated condition that fails
// forces a deny. Predicates can never turn an earlier deny into an allow.
type PredicateRule struct {
	ForbiddenUsers   []string `json:"forbidden_users,omitempty"`
	RequiredProjects []string `json:"required_projects,omitempty"`
}

// AccessRule is one tagged rule variant attached to a silo. Only the fields
// matching Kind are meaningful.
type AccessRule struct {
	Kind RuleKind `json:"kind"`

	// RuleTeam
	AllowedTeams    []string `json:"allowed_teams,omitempty"`
	PublicWithinOrg bool     `json:"public_within_org,omitempty"`

	// RuleRole
	AllowedRoles []string `json:"allowed_roles,omitempty"`

	// RuleTemporal
	Window *TimeWindow `json:"window,omitempty"`

	// RulePredicate
	Predicate *PredicateRule `json:"predicate,omitempty"`
}

// SiloMetadata describes one independently administered data partition.
// Immutable inside the query engine; updates go through the registry, which
// bumps Revision so dependent permission-cache entries can be invalidated.
type SiloMetadata struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	Type           SiloType       `json:"type"`
	OrganizationID string         `json:"organization_id"`
	TeamID         string         `json:"team_id"`
	Classification Classification `json:"classification"`
	// MinClearance applies on top of the classification check for Restricted
	// silos. ClearanceNone means no additional requirement.
	MinClearance Clearance    `json:"min_clearance,omitempty"`
	Rules        []AccessRule `json:"rules,omitempty"`
	// Domains are topic keywords used for candidate narrowing, a performance
	// optimization and never a security boundary.
	Domains      []string  `json:"domains,omitempty"`
	EmbeddingDim int       `json:"embedding_dim,omitempty"`
	LastIndexed  time.Time `json:"last_indexed,omitempty"`

	// Revision increments on every registry update. Permission decisions are
	// cached against (user, silo, revision) so a metadata change can never be
	// served from a stale decision.
	Revision uint64 `json:"revision"`
}

// UserContext carries everything the permission engine may consider about the
// caller. Constructed per request at the system boundary; never persisted here.
type UserContext struct {
	UserID         string           `json:"user_id"`
	OrganizationID string           `json:"organization_id"`
	TeamIDs        []string         `json:"team_ids,omitempty"`
	Roles          []string         `json:"roles,omitempty"`
	AccessLevels   []Classification `json:"access_levels,omitempty"`
	Clearance      Clearance        `json:"clearance,omitempty"`
	Projects       []string         `json:"projects,omitempty"`
	// CrossOrgGrants lists organization IDs the user may reach across the
	// organizational boundary.
	CrossOrgGrants []string `json:"cross_org_grants,omitempty"`
	// Temporal, when set, restricts the user to a daily access window.
	Temporal *TimeWindow `json:"temporal,omitempty"`
}

// MaxAccessLevel returns the highest classification the user holds.
// A user with no levels is treated as public-only.
func (u UserContext) MaxAccessLevel() Classification {
	max := ClassificationPublic
	for _, level := range u.AccessLevels {
		if level > max {
			max = level
		}
	}
	return max
}

// InTeam reports whether the user belongs to the given team.
func (u UserContext) InTeam(teamID string) bool {
	for _, id := range u.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}

// HasCrossOrgGrant reports whether the user holds an explicit grant for orgID.
func (u UserContext) HasCrossOrgGrant(orgID string) bool {
	for _, id := range u.CrossOrgGrants {
		if id == orgID {
			return true
		}
	}
	return false
}
