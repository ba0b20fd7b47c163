// Package app wires configuration, storage, providers and the indexing and
// retrieval services into one process-wide value used by the binaries.
package app

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/catalog-search-backend/internal/data/db"
	"github.com/yungbote/catalog-search-backend/internal/data/repos"
	"github.com/yungbote/catalog-search-backend/internal/modules/events"
	"github.com/yungbote/catalog-search-backend/internal/modules/indexing"
	"github.com/yungbote/catalog-search-backend/internal/modules/retrieval"
	"github.com/yungbote/catalog-search-backend/internal/observability"
	"github.com/yungbote/catalog-search-backend/internal/platform/gcp"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
	"github.com/yungbote/catalog-search-backend/internal/platform/pinecone"
	"github.com/yungbote/catalog-search-backend/internal/platform/vectorindex"
)

type App struct {
	Log     *logger.Logger
	Cfg     Config
	DB      *gorm.DB
	Repos   repos.Repos
	Metrics *observability.Metrics
	Clients Clients
	Index   vectorindex.Index

	Builder   *indexing.Builder
	Retrieval *retrieval.Service
	Events    *events.Service

	dbService *db.Service
	images    *imageSources
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	metrics := observability.Init(log)

	pg, err := db.Open(log, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(pg.DB()); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	a := &App{Log: log, Cfg: cfg, DB: pg.DB(), Metrics: metrics, dbService: pg}
	a.Repos = repos.New(a.DB, log)

	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	log := a.Log
	clients, err := wireClients(ctx, log, a.Cfg, a.Metrics)
	if err != nil {
		return err
	}
	a.Clients = clients

	storageCfg, err := gcp.ResolveObjectStorageConfigFromEnv()
	if err != nil {
		return classifyStorageProviderBootstrapError(storageCfg, err)
	}
	sel, err := resolveVectorProvider(a.Cfg.VectorProvider, storageCfg.Mode)
	if err != nil {
		return err
	}
	idx, err := resolveVectorIndex(ctx, log, vectorBootstrap{
		Selection:   sel,
		StorageMode: string(storageCfg.Mode),
		Vertex:      clients.Vertex,
		Pinecone:    pinecone.ConfigFromEnv(),
	}, a.Metrics)
	if err != nil {
		return err
	}
	a.Index = idx

	images, err := resolveImageSources(ctx, log, storageCfg, a.Metrics)
	if err != nil {
		return err
	}
	a.images = images

	return a.wireServices()
}

// wireServices builds the domain services from whatever providers resolved.
func (a *App) wireServices() error {
	deps := indexing.BuilderDeps{
		Log:        a.Log,
		Products:   a.Repos.Products,
		Embeddings: a.Repos.Embeddings,
		Index:      a.Index,
		Text:       a.Clients.Text,
		Image:      a.Clients.Image,
		Metrics:    a.Metrics,
	}
	rdeps := retrieval.ServiceDeps{
		Log:        a.Log,
		Products:   a.Repos.Products,
		Embeddings: a.Repos.Embeddings,
		Events:     a.Repos.Events,
		Index:      a.Index,
		Text:       a.Clients.Text,
		Image:      a.Clients.Image,
		Metrics:    a.Metrics,
	}
	if a.images != nil && a.images.Fetcher != nil {
		deps.Fetcher = a.images.Fetcher
		rdeps.Fetcher = a.images.Fetcher
	}
	if a.Clients.Cache != nil {
		rdeps.Cache = a.Clients.Cache
	}

	b, err := indexing.NewBuilder(deps, a.Cfg.Indexing)
	if err != nil {
		return fmt.Errorf("init index builder: %w", err)
	}
	svc, err := retrieval.NewService(rdeps, a.Cfg.Retrieval)
	if err != nil {
		return fmt.Errorf("init retrieval service: %w", err)
	}
	a.Builder = b
	a.Retrieval = svc
	a.Events = events.NewService(a.Log, a.Repos.Events)
	return nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.images != nil {
		a.images.Close()
	}
	a.Clients.Close()
	if a.dbService != nil {
		_ = a.dbService.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
