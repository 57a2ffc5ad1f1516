// Package commands implements the synapse CLI subcommands.
package commands

import (
	"database/sql"

	"github.com/synapselabs/synapse/config"
	"github.com/synapselabs/synapse/db"
	"github.com/synapselabs/synapse/errors"
	"github.com/synapselabs/synapse/logger"
	"github.com/synapselabs/synapse/permission"
	"github.com/synapselabs/synapse/privacy"
	"github.com/synapselabs/synapse/router"
	"github.com/synapselabs/synapse/silo"
	"github.com/synapselabs/synapse/storage"
)

// defaultEmbeddingDim sizes the bundled document index when configuration
// does not say otherwise.
const defaultEmbeddingDim = 384

// engine bundles the wired components a CLI command needs.
type engine struct {
	cfg       *config.Config
	database  *sql.DB
	registry  *silo.Registry
	siloStore *silo.Store
	budget    *privacy.Manager
	router    *router.Router
	docs      *storage.DocumentStore
}

// buildEngine loads configuration, opens the database and wires the full
// query pipeline: registry, permission engine, budget manager and router,
// with a bundled document searcher per registered silo.
func buildEngine() (*engine, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load configuration")
	}

	log := logger.Logger

	database, err := db.Open(cfg.Database.Path, log)
	if err != nil {
		return nil, err
	}

	siloStore, err := silo.NewStore(database)
	if err != nil {
		database.Close()
		return nil, err
	}

	registry := silo.NewRegistry(log)
	perms := permission.NewEngine(cfg.Permission.CacheTTL(), log)
	registry.OnInvalidate(perms.InvalidateSilo)

	persisted, err := siloStore.LoadAll()
	if err != nil {
		database.Close()
		return nil, err
	}
	for _, meta := range persisted {
		if err := registry.Restore(meta); err != nil {
			database.Close()
			return nil, err
		}
	}

	ledger, err := privacy.NewStore(database)
	if err != nil {
		database.Close()
		return nil, err
	}
	budget, err := privacy.NewManagerFromStore(privacy.Config{
		TotalBudget:          cfg.Privacy.TotalBudget,
		ScoreSensitivity:     cfg.Privacy.ScoreSensitivity,
		EmbeddingSensitivity: cfg.Privacy.EmbeddingSensitivity,
		GrantGracePeriod:     cfg.Privacy.GrantGracePeriod(),
	}, ledger, log)
	if err != nil {
		database.Close()
		return nil, err
	}

	docs, err := storage.NewDocumentStore(database, defaultEmbeddingDim, log)
	if err != nil {
		database.Close()
		return nil, err
	}

	rt := router.NewRouter(registry, perms, budget, cfg.Query, cfg.Privacy.DefaultQueryEpsilon, log)
	for _, meta := range registry.List() {
		rt.RegisterSearcher(meta.ID, storage.NewSiloSearcher(docs, meta.ID))
	}

	return &engine{
		cfg:       cfg,
		database:  database,
		registry:  registry,
		siloStore: siloStore,
		budget:    budget,
		router:    rt,
		docs:      docs,
	}, nil
}

func (e *engine) close() {
	e.database.Close()
}
