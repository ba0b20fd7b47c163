package events

import (
	"strings"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/catalog-search-backend/internal/domain"
	"github.com/yungbote/catalog-search-backend/internal/platform/dbctx"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

type ProductCount struct {
	ProductID string `gorm:"column:product_id" json:"product_id"`
	Count     int64  `gorm:"column:count" json:"count"`
}

type PopularQuery struct {
	Since *time.Time
	Types []string
	Limit int
}

type UserStats struct {
	UserID         string           `json:"user_id"`
	Total          int64            `json:"total"`
	ByType         map[string]int64 `json:"by_type"`
	UniqueProducts int64            `json:"unique_products"`
}

type InteractionEventRepo interface {
	Create(dbc dbctx.Context, events []*types.InteractionEvent) ([]*types.InteractionEvent, error)
	// ListByUser returns the newest events first.
	ListByUser(dbc dbctx.Context, userID string, eventTypes []string, limit int) ([]*types.InteractionEvent, error)
	// PopularProducts ranks products by event count, ties by product id.
	PopularProducts(dbc dbctx.Context, q PopularQuery) ([]ProductCount, error)
	UserStats(dbc dbctx.Context, userID string) (*UserStats, error)
}

type interactionEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInteractionEventRepo(db *gorm.DB, baseLog *logger.Logger) InteractionEventRepo {
	return &interactionEventRepo{db: db, log: baseLog.With("repo", "InteractionEventRepo")}
}

func (r *interactionEventRepo) Create(dbc dbctx.Context, events []*types.InteractionEvent) ([]*types.InteractionEvent, error) {
	if len(events) == 0 {
		return []*types.InteractionEvent{}, nil
	}
	now := time.Now().UTC()
	for _, e := range events {
		if e != nil && e.Timestamp.IsZero() {
			e.Timestamp = now
		}
	}
	if err := dbc.Conn(r.db).Create(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *interactionEventRepo) ListByUser(dbc dbctx.Context, userID string, eventTypes []string, limit int) ([]*types.InteractionEvent, error) {
	var out []*types.InteractionEvent
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return out, nil
	}
	q := dbc.Conn(r.db).Where("user_id = ?", userID)
	if len(eventTypes) > 0 {
		q = q.Where("type IN ?", eventTypes)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Order("timestamp DESC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *interactionEventRepo) PopularProducts(dbc dbctx.Context, pq PopularQuery) ([]ProductCount, error) {
	var out []ProductCount
	q := dbc.Conn(r.db).
		Model(&types.InteractionEvent{}).
		Select("product_id, COUNT(*) AS count")
	if pq.Since != nil {
		q = q.Where("timestamp >= ?", pq.Since.UTC())
	}
	if len(pq.Types) > 0 {
		q = q.Where("type IN ?", pq.Types)
	}
	q = q.Group("product_id").Order("count DESC").Order("product_id ASC")
	if pq.Limit > 0 {
		q = q.Limit(pq.Limit)
	}
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *interactionEventRepo) UserStats(dbc dbctx.Context, userID string) (*UserStats, error) {
	stats := &UserStats{UserID: userID, ByType: map[string]int64{}}
	var rows []struct {
		Type  string
		Count int64
	}
	conn := dbc.Conn(r.db)
	if err := conn.Model(&types.InteractionEvent{}).
		Select("type, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		stats.ByType[row.Type] = row.Count
		stats.Total += row.Count
	}
	if err := conn.Model(&types.InteractionEvent{}).
		Where("user_id = ?", userID).
		Distinct("product_id").
		Count(&stats.UniqueProducts).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
