package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/catalog-search-backend/internal/data/repos/catalog"
	"github.com/yungbote/catalog-search-backend/internal/data/repos/events"
	"github.com/yungbote/catalog-search-backend/internal/data/repos/search"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

type ProductRepo = catalog.ProductRepo
type ProductImageRepo = catalog.ProductImageRepo
type EmbeddingRecordRepo = search.EmbeddingRecordRepo
type InteractionEventRepo = events.InteractionEventRepo

type InsertFailure = search.InsertFailure
type ProductCount = events.ProductCount
type PopularQuery = events.PopularQuery
type UserStats = events.UserStats

type Repos struct {
	Products   ProductRepo
	Images     ProductImageRepo
	Embeddings EmbeddingRecordRepo
	Events     InteractionEventRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Products:   catalog.NewProductRepo(db, log),
		Images:     catalog.NewProductImageRepo(db, log),
		Embeddings: search.NewEmbeddingRecordRepo(db, log),
		Events:     events.NewInteractionEventRepo(db, log),
	}
}
