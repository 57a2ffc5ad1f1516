package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "synapse.db")

	// Privacy budget defaults
	v.SetDefault("privacy.total_budget", 10.0)          // B_total for the process lifetime
	v.SetDefault("privacy.default_query_epsilon", 0.1)  // per-query allocation when unspecified
	v.SetDefault("privacy.score_sensitivity", 0.1)      // bounded similarity scores
	v.SetDefault("privacy.embedding_sensitivity", 1.0)  // L2-normalized embeddings
	v.SetDefault("privacy.grant_grace_period_seconds", 60)

	// Query router defaults
	v.SetDefault("query.max_concurrent_silos", 8)
	v.SetDefault("query.fanout_timeout_seconds", 10)
	v.SetDefault("query.default_max_results", 10)
	v.SetDefault("query.per_silo_result_cap", 5)
	v.SetDefault("query.silo_priority", []string{})
	v.SetDefault("query.silo_rate_limit_per_minute", 60)

	// Permission engine defaults
	v.SetDefault("permission.cache_ttl_seconds", 300) // 5 minutes

	// Synthesis defaults
	v.SetDefault("synthesis.timeout_seconds", 30)
	v.SetDefault("synthesis.max_excerpt_len", 500)
}
