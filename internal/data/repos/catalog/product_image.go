package catalog

import (
	"gorm.io/gorm"

	types "github.com/yungbote/catalog-search-backend/internal/domain"
	"github.com/yungbote/catalog-search-backend/internal/platform/dbctx"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

type ProductImageRepo interface {
	Create(dbc dbctx.Context, images []*types.ProductImage) ([]*types.ProductImage, error)
	ListByProductIDs(dbc dbctx.Context, productIDs []string) ([]*types.ProductImage, error)
}

type productImageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductImageRepo(db *gorm.DB, baseLog *logger.Logger) ProductImageRepo {
	return &productImageRepo{db: db, log: baseLog.With("repo", "ProductImageRepo")}
}

func (r *productImageRepo) Create(dbc dbctx.Context, images []*types.ProductImage) ([]*types.ProductImage, error) {
	if len(images) == 0 {
		return []*types.ProductImage{}, nil
	}
	if err := dbc.Conn(r.db).Create(&images).Error; err != nil {
		return nil, err
	}
	return images, nil
}

func (r *productImageRepo) ListByProductIDs(dbc dbctx.Context, productIDs []string) ([]*types.ProductImage, error) {
	var out []*types.ProductImage
	productIDs = compactIDs(productIDs)
	if len(productIDs) == 0 {
		return out, nil
	}
	if err := dbc.Conn(r.db).
		Where("product_id IN ?", productIDs).
		Order("product_id ASC").
		Order("ordinal ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
