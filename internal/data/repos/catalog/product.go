package catalog

import (
	"strings"

	"gorm.io/gorm"

	types "github.com/yungbote/catalog-search-backend/internal/domain"
	"github.com/yungbote/catalog-search-backend/internal/platform/dbctx"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

type ProductRepo interface {
	Create(dbc dbctx.Context, products []*types.Product) ([]*types.Product, error)
	GetByIDs(dbc dbctx.Context, ids []string) ([]*types.Product, error)
	// ListForIndexing returns products with their images ordered by ordinal.
	// Empty statuses or ids mean no filter on that field.
	ListForIndexing(dbc dbctx.Context, statuses []string, ids []string) ([]*types.Product, error)
}

type productRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProductRepo(db *gorm.DB, baseLog *logger.Logger) ProductRepo {
	return &productRepo{db: db, log: baseLog.With("repo", "ProductRepo")}
}

func (r *productRepo) Create(dbc dbctx.Context, products []*types.Product) ([]*types.Product, error) {
	if len(products) == 0 {
		return []*types.Product{}, nil
	}
	for _, p := range products {
		if p != nil && strings.TrimSpace(p.Status) == "" {
			p.Status = types.ProductStatusAvailable
		}
	}
	if err := dbc.Conn(r.db).Create(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepo) GetByIDs(dbc dbctx.Context, ids []string) ([]*types.Product, error) {
	var out []*types.Product
	ids = compactIDs(ids)
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.Conn(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *productRepo) ListForIndexing(dbc dbctx.Context, statuses []string, ids []string) ([]*types.Product, error) {
	var out []*types.Product
	q := dbc.Conn(r.db).
		Preload("Images", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("ordinal ASC").Order("id ASC")
		}).
		Order("id ASC")
	if st := compactIDs(statuses); len(st) > 0 {
		q = q.Where("status IN ?", st)
	}
	if len(ids) > 0 {
		ids = compactIDs(ids)
		if len(ids) == 0 {
			return out, nil
		}
		q = q.Where("id IN ?", ids)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func compactIDs(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
