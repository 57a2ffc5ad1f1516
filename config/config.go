package config

import "time"

// Config represents the core Synapse configuration
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Privacy    PrivacyConfig    `mapstructure:"privacy"`
	Query      QueryConfig      `mapstructure:"query"`
	Permission PermissionConfig `mapstructure:"permission"`
	Synthesis  SynthesisConfig  `mapstructure:"synthesis"`
}

// DatabaseConfig configures the SQLite database holding silo documents and
// the privacy audit ledger.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// PrivacyConfig configures the differential-privacy budget manager.
type PrivacyConfig struct {
	// TotalBudget is B_total, the process-lifetime epsilon budget.
	TotalBudget float64 `mapstructure:"total_budget"`
	// DefaultQueryEpsilon is used when a request carries no explicit budget.
	DefaultQueryEpsilon float64 `mapstructure:"default_query_epsilon"`
	// ScoreSensitivity is the declared sensitivity of silo relevance scores.
	ScoreSensitivity float64 `mapstructure:"score_sensitivity"`
	// EmbeddingSensitivity is the declared sensitivity of the embedding
	// distance metric, used to scale Gaussian noise.
	EmbeddingSensitivity float64 `mapstructure:"embedding_sensitivity"`
	// GrantGracePeriod bounds how long an authorized-but-undebited grant may
	// hold its reservation before it is released back to the pool.
	GrantGracePeriodSeconds int `mapstructure:"grant_grace_period_seconds"`
}

// QueryConfig configures the federated query router.
type QueryConfig struct {
	// MaxConcurrentSilos bounds the fan-out; 0 means unbounded.
	MaxConcurrentSilos int `mapstructure:"max_concurrent_silos"`
	// FanoutTimeoutSeconds is the shared deadline for the whole fan-out.
	FanoutTimeoutSeconds int `mapstructure:"fanout_timeout_seconds"`
	// DefaultMaxResults applies when a request carries no result cap.
	DefaultMaxResults int `mapstructure:"default_max_results"`
	// PerSiloResultCap bounds what any single silo may contribute to the
	// merged list, enforcing source diversity. 0 disables the cap.
	PerSiloResultCap int `mapstructure:"per_silo_result_cap"`
	// SiloPriority is the stable tie-break order for merged results.
	// Silos absent from the list sort after listed ones, by ID.
	SiloPriority []string `mapstructure:"silo_priority"`
	// SiloRateLimitPerMinute throttles searches against any one silo.
	// 0 disables rate limiting.
	SiloRateLimitPerMinute int `mapstructure:"silo_rate_limit_per_minute"`
}

// PermissionConfig configures the permission engine's decision cache.
type PermissionConfig struct {
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
}

// SynthesisConfig configures the knowledge synthesizer.
type SynthesisConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// MaxExcerptLen truncates each representative excerpt handed to the
	// language-generation collaborator.
	MaxExcerptLen int `mapstructure:"max_excerpt_len"`
}

// FanoutTimeout returns the shared fan-out deadline as a duration.
func (q QueryConfig) FanoutTimeout() time.Duration {
	return time.Duration(q.FanoutTimeoutSeconds) * time.Second
}

// CacheTTL returns the permission cache TTL as a duration.
func (p PermissionConfig) CacheTTL() time.Duration {
	return time.Duration(p.CacheTTLSeconds) * time.Second
}

// Timeout returns the synthesis deadline as a duration.
func (s SynthesisConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// GrantGracePeriod returns the grant grace period as a duration.
func (p PrivacyConfig) GrantGracePeriod() time.Duration {
	return time.Duration(p.GrantGracePeriodSeconds) * time.Second
}
