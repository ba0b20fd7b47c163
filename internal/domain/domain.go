package domain

import (
	"github.com/yungbote/catalog-search-backend/internal/domain/catalog"
	"github.com/yungbote/catalog-search-backend/internal/domain/events"
	"github.com/yungbote/catalog-search-backend/internal/domain/search"
)

const (
	EventView     = events.TypeView
	EventCart     = events.TypeCart
	EventPurchase = events.TypePurchase
	EventWishlist = events.TypeWishlist

	EmbeddingScopeText  = search.ScopeText
	EmbeddingScopeImage = search.ScopeImage

	ProductStatusAvailable = catalog.StatusAvailable
)

type Product = catalog.Product
type ProductImage = catalog.ProductImage
type EmbeddingRecord = search.EmbeddingRecord
type InteractionEvent = events.InteractionEvent

// AllModels lists every persisted model in migration order.
func AllModels() []any {
	return []any{
		&catalog.Product{},
		&catalog.ProductImage{},
		&search.EmbeddingRecord{},
		&events.InteractionEvent{},
	}
}
