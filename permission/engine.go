// Package permission decides whether a user context may read a silo.
// Evaluation is a pure function of (user, silo metadata, current time); the
// only state is a TTL-bounded decision cache.
package permission

import (
	"time"

	"go.uber.org/zap"

	"github.com/synapselabs/synapse/types"
)

// ruleFunc evaluates one stage of the fixed rule order. A nil return means
// the stage passes; a non-nil decision is a deny that ends evaluation.
type ruleFunc func(e *Engine, user types.UserContext, silo types.SiloMetadata, now time.Time) *types.AccessDecision

// ruleOrder is the fixed evaluation order. It must not be reordered by
// configuration: later rules can only add denies, never override earlier
// ones, and the organizational boundary must always be checked first.
var ruleOrder = []ruleFunc{
	(*Engine).checkOrganization,
	(*Engine).checkTeamOrRole,
	(*Engine).checkClassification,
	(*Engine).checkTemporal,
	(*Engine).checkPredicates,
}

// Engine evaluates access decisions with a read-through TTL cache.
type Engine struct {
	cache  *decisionCache
	clock  func() time.Time
	logger *zap.SugaredLogger
}

// NewEngine creates a permission engine whose cached decisions expire after ttl.
func NewEngine(ttl time.Duration, logger *zap.SugaredLogger) *Engine {
	return NewEngineWithClock(ttl, logger, time.Now)
}

// NewEngineWithClock creates an engine with an injectable clock (for testing
// TTL expiry and temporal rules).
func NewEngineWithClock(ttl time.Duration, logger *zap.SugaredLogger, clock func() time.Time) *Engine {
	return &Engine{
		cache:  newDecisionCache(ttl, clock),
		clock:  clock,
		logger: logger,
	}
}

// Evaluate returns the access decision for one (user, silo) pair.
// Deterministic given its inputs and the current time. Decisions are cached
// against the silo's metadata revision, so a registry update can never be
// served a decision derived from older metadata.
func (e *Engine) Evaluate(user types.UserContext, silo types.SiloMetadata) types.AccessDecision {
	key := cacheKey(user, silo)
	if cached, ok := e.cache.get(key); ok {
		return cached
	}

	decision := e.evaluate(user, silo)
	e.cache.put(key, decision)

	// Audit trail: every fresh evaluation is logged with its reason.
	e.logger.Infow("Access decision",
		"user_id", user.UserID,
		"organization", user.OrganizationID,
		"silo_id", silo.ID,
		"silo_name", silo.Name,
		"classification", silo.Classification.String(),
		"allow", decision.Allow,
		"reason", string(decision.Reason))

	return decision
}

func (e *Engine) evaluate(user types.UserContext, silo types.SiloMetadata) types.AccessDecision {
	now := e.clock()

	for _, rule := range ruleOrder {
		if deny := rule(e, user, silo, now); deny != nil {
			return *deny
		}
	}

	return types.AccessDecision{
		SiloID:      silo.ID,
		Allow:       true,
		Reason:      types.ReasonAllowed,
		EvaluatedAt: now,
	}
}

// InvalidateSilo drops every cached decision involving the given silo.
// The registry calls this before a metadata update becomes visible.
func (e *Engine) InvalidateSilo(siloID string) {
	e.cache.invalidateSilo(siloID)
}

// InvalidateAll drops the whole decision cache.
func (e *Engine) InvalidateAll() {
	e.cache.invalidateAll()
}

func deny(silo types.SiloMetadata, reason types.ReasonCode, detail string, now time.Time) *types.AccessDecision {
	return &types.AccessDecision{
		SiloID:      silo.ID,
		Allow:       false,
		Reason:      reason,
		Detail:      detail,
		EvaluatedAt: now,
	}
}

// checkOrganization enforces the organizational boundary: cross-org access is
// denied unless the user holds an explicit grant for the silo's organization.
func (e *Engine) checkOrganization(user types.UserContext, silo types.SiloMetadata, now time.Time) *types.AccessDecision {
	if silo.OrganizationID == user.OrganizationID {
		return nil
	}
	if user.HasCrossOrgGrant(silo.OrganizationID) {
		return nil
	}
	return deny(silo, types.ReasonCrossOrg,
		"user organization "+user.OrganizationID+" has no grant for "+silo.OrganizationID, now)
}

// checkTeamOrRole requires membership in the silo's owning team, membership in
// an explicitly allowed team, an explicitly permitted role, or org-public
// visibility.
func (e *Engine) checkTeamOrRole(user types.UserContext, silo types.SiloMetadata, now time.Time) *types.AccessDecision {
	if user.InTeam(silo.TeamID) {
		return nil
	}

	for _, rule := range silo.Rules {
		switch rule.Kind {
		case types.RuleTeam:
			for _, team := range rule.AllowedTeams {
				if user.InTeam(team) {
					return nil
				}
			}
			if rule.PublicWithinOrg && silo.OrganizationID == user.OrganizationID {
				return nil
			}
		case types.RuleRole:
			for _, allowed := range rule.AllowedRoles {
				for _, held := range user.Roles {
					if held == allowed {
						return nil
					}
				}
			}
		}
	}

	return deny(silo, types.ReasonTeam,
		"user is not in an allowed team and holds no permitted role", now)
}

// checkClassification requires the user's held levels to dominate the silo's
// classification. A Restricted silo additionally requires a minimum security
// clearance, which is a separate hierarchy from access levels.
func (e *Engine) checkClassification(user types.UserContext, silo types.SiloMetadata, now time.Time) *types.AccessDecision {
	if !user.MaxAccessLevel().Dominates(silo.Classification) {
		return deny(silo, types.ReasonClassification,
			"user max level "+user.MaxAccessLevel().String()+" does not dominate "+silo.Classification.String(), now)
	}

	if silo.Classification == types.ClassificationRestricted && silo.MinClearance > types.ClearanceNone {
		if !user.Clearance.Meets(silo.MinClearance) {
			return deny(silo, types.ReasonClearance,
				"restricted silo requires clearance "+silo.MinClearance.String(), now)
		}
	}

	return nil
}

// checkTemporal denies when the current time falls outside a time window
// declared by either the silo's rules or the user context.
func (e *Engine) checkTemporal(user types.UserContext, silo types.SiloMetadata, now time.Time) *types.AccessDecision {
	if user.Temporal != nil && !user.Temporal.Contains(now) {
		return deny(silo, types.ReasonTemporal, "outside user access window", now)
	}

	for _, rule := range silo.Rules {
		if rule.Kind != types.RuleTemporal || rule.Window == nil {
			continue
		}
		if !rule.Window.Contains(now) {
			return deny(silo, types.ReasonTemporal, "outside silo access window", now)
		}
	}

	return nil
}

// checkPredicates evaluates organization-specific custom rules last. Each can
// force a deny but can never grant access an earlier rule refused.
func (e *Engine) checkPredicates(user types.UserContext, silo types.SiloMetadata, now time.Time) *types.AccessDecision {
	for _, rule := range silo.Rules {
		if rule.Kind != types.RulePredicate || rule.Predicate == nil {
			continue
		}
		pred := rule.Predicate

		for _, forbidden := range pred.ForbiddenUsers {
			if forbidden == user.UserID {
				return deny(silo, types.ReasonPredicate, "user is explicitly forbidden", now)
			}
		}

		if len(pred.RequiredProjects) > 0 {
			if !hasAnyProject(user.Projects, pred.RequiredProjects) {
				return deny(silo, types.ReasonPredicate, "user lacks required project access", now)
			}
		}
	}

	return nil
}

func hasAnyProject(held, required []string) bool {
	for _, r := range required {
		for _, h := range held {
			if h == r {
				return true
			}
		}
	}
	return false
}
