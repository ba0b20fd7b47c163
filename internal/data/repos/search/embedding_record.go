package search

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	types "github.com/yungbote/catalog-search-backend/internal/domain"
	"github.com/yungbote/catalog-search-backend/internal/platform/dbctx"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

// InsertFailure describes one mirror row that could not be written.
type InsertFailure struct {
	DatapointID string
	Duplicate   bool
	Err         error
}

type EmbeddingRecordRepo interface {
	ListDatapointIDs(dbc dbctx.Context, scope string, productIDs []string) ([]string, error)
	DeleteByScope(dbc dbctx.Context, scope string, productIDs []string) (int64, error)
	// InsertUnordered writes rows independently: a failing row never blocks the others.
	InsertUnordered(dbc dbctx.Context, rows []*types.EmbeddingRecord) (int, []InsertFailure)
	// ListByProductIDs returns up to perProduct records per product ordered by position,
	// un-positioned rows last, ties broken by datapoint id.
	ListByProductIDs(dbc dbctx.Context, scope string, productIDs []string, perProduct int) (map[string][]*types.EmbeddingRecord, error)
	GetByDatapointID(dbc dbctx.Context, scope, datapointID string) (*types.EmbeddingRecord, error)
	CountByScope(dbc dbctx.Context, scope string) (int64, error)
}

type embeddingRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewEmbeddingRecordRepo(db *gorm.DB, baseLog *logger.Logger) EmbeddingRecordRepo {
	return &embeddingRecordRepo{db: db, log: baseLog.With("repo", "EmbeddingRecordRepo")}
}

func (r *embeddingRecordRepo) ListDatapointIDs(dbc dbctx.Context, scope string, productIDs []string) ([]string, error) {
	var out []string
	q := dbc.Conn(r.db).Model(&types.EmbeddingRecord{}).Where("scope = ?", scope)
	if len(productIDs) > 0 {
		q = q.Where("product_id IN ?", productIDs)
	}
	if err := q.Order("datapoint_id ASC").Pluck("datapoint_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *embeddingRecordRepo) DeleteByScope(dbc dbctx.Context, scope string, productIDs []string) (int64, error) {
	q := dbc.Conn(r.db).Where("scope = ?", scope)
	if len(productIDs) > 0 {
		q = q.Where("product_id IN ?", productIDs)
	}
	res := q.Delete(&types.EmbeddingRecord{})
	return res.RowsAffected, res.Error
}

func (r *embeddingRecordRepo) InsertUnordered(dbc dbctx.Context, rows []*types.EmbeddingRecord) (int, []InsertFailure) {
	clean := make([]*types.EmbeddingRecord, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			clean = append(clean, row)
		}
	}
	if len(clean) == 0 {
		return 0, nil
	}

	conn := dbc.Conn(r.db)
	if err := conn.Create(&clean).Error; err == nil {
		return len(clean), nil
	} else {
		r.log.Warn("bulk mirror insert failed; falling back to per-row inserts", "rows", len(clean), "error", err)
	}

	inserted := 0
	var failures []InsertFailure
	for _, row := range clean {
		if err := conn.Create(row).Error; err != nil {
			failures = append(failures, InsertFailure{
				DatapointID: row.DatapointID,
				Duplicate:   isDuplicateKey(err),
				Err:         err,
			})
			continue
		}
		inserted++
	}
	return inserted, failures
}

func (r *embeddingRecordRepo) ListByProductIDs(dbc dbctx.Context, scope string, productIDs []string, perProduct int) (map[string][]*types.EmbeddingRecord, error) {
	out := make(map[string][]*types.EmbeddingRecord, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	var rows []*types.EmbeddingRecord
	if err := dbc.Conn(r.db).
		Where("scope = ? AND product_id IN ?", scope, productIDs).
		Order("product_id ASC").
		Order("CASE WHEN position IS NULL THEN 1 ELSE 0 END").
		Order("position ASC").
		Order("datapoint_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		if perProduct > 0 && len(out[row.ProductID]) >= perProduct {
			continue
		}
		out[row.ProductID] = append(out[row.ProductID], row)
	}
	return out, nil
}

func (r *embeddingRecordRepo) GetByDatapointID(dbc dbctx.Context, scope, datapointID string) (*types.EmbeddingRecord, error) {
	var row types.EmbeddingRecord
	err := dbc.Conn(r.db).
		Where("scope = ? AND datapoint_id = ?", scope, datapointID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.DatapointID == "" {
		return nil, nil
	}
	return &row, nil
}

func (r *embeddingRecordRepo) CountByScope(dbc dbctx.Context, scope string) (int64, error) {
	var n int64
	err := dbc.Conn(r.db).Model(&types.EmbeddingRecord{}).Where("scope = ?", scope).Count(&n).Error
	return n, err
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
