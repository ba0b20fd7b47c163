// Package events records shopper interactions and serves the aggregate views
// personalization relies on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/yungbote/catalog-search-backend/internal/data/repos"
	types "github.com/yungbote/catalog-search-backend/internal/domain"
	domainevents "github.com/yungbote/catalog-search-backend/internal/domain/events"
	"github.com/yungbote/catalog-search-backend/internal/platform/apierr"
	"github.com/yungbote/catalog-search-backend/internal/platform/dbctx"
	"github.com/yungbote/catalog-search-backend/internal/platform/logger"
)

const maxHistoryLimit = 500

type EventInput struct {
	UserID    string         `json:"user_id"`
	ProductID string         `json:"product_id"`
	Type      string         `json:"type"`
	Timestamp *time.Time     `json:"timestamp,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type EventError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

type BatchResult struct {
	Tracked int          `json:"tracked"`
	Failed  int          `json:"failed"`
	Errors  []EventError `json:"errors,omitempty"`
}

type Service struct {
	log    *logger.Logger
	events repos.InteractionEventRepo
	now    func() time.Time
}

func NewService(log *logger.Logger, events repos.InteractionEventRepo) *Service {
	return &Service{
		log:    log.With("service", "EventService"),
		events: events,
		now:    time.Now,
	}
}

func (s *Service) build(in EventInput) (*types.InteractionEvent, error) {
	userID := strings.TrimSpace(in.UserID)
	productID := strings.TrimSpace(in.ProductID)
	eventType := strings.ToLower(strings.TrimSpace(in.Type))
	if userID == "" || productID == "" || eventType == "" {
		return nil, apierr.BadRequest("missing_fields", "user_id, product_id and type are required")
	}
	if !domainevents.IsValidType(eventType) {
		return nil, apierr.BadRequest("invalid_event_type", "type must be one of %s", strings.Join(domainevents.ValidTypes, ", "))
	}
	ts := s.now().UTC()
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		ts = in.Timestamp.UTC()
	}
	ev := &types.InteractionEvent{UserID: userID, ProductID: productID, Type: eventType, Timestamp: ts}
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, apierr.BadRequest("invalid_metadata", "metadata: %v", err)
		}
		ev.Metadata = datatypes.JSON(raw)
	}
	return ev, nil
}

func (s *Service) Track(ctx context.Context, in EventInput) (*types.InteractionEvent, error) {
	ev, err := s.build(in)
	if err != nil {
		return nil, err
	}
	if _, err := s.events.Create(dbctx.Context{Ctx: ctx}, []*types.InteractionEvent{ev}); err != nil {
		return nil, fmt.Errorf("track event: %w", err)
	}
	s.log.Debug("event tracked", "user_id", ev.UserID, "product_id", ev.ProductID, "type", ev.Type)
	return ev, nil
}

// TrackBatch validates each input independently and inserts the valid ones.
// A failing bulk insert is retried row by row so one bad row never drops the rest.
func (s *Service) TrackBatch(ctx context.Context, inputs []EventInput) BatchResult {
	var res BatchResult
	valid := make([]*types.InteractionEvent, 0, len(inputs))
	index := make([]int, 0, len(inputs))
	for i, in := range inputs {
		ev, err := s.build(in)
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, EventError{Index: i, Message: err.Error()})
			continue
		}
		valid = append(valid, ev)
		index = append(index, i)
	}
	if len(valid) == 0 {
		return res
	}

	dbc := dbctx.Context{Ctx: ctx}
	if _, err := s.events.Create(dbc, valid); err == nil {
		res.Tracked = len(valid)
	} else {
		s.log.Warn("bulk event insert failed; retrying per event", "events", len(valid), "error", err)
		for j, ev := range valid {
			if _, err := s.events.Create(dbc, []*types.InteractionEvent{ev}); err != nil {
				res.Failed++
				res.Errors = append(res.Errors, EventError{Index: index[j], Message: err.Error()})
				continue
			}
			res.Tracked++
		}
	}
	s.log.Info("event batch tracked", "tracked", res.Tracked, "failed", res.Failed)
	return res
}

func (s *Service) History(ctx context.Context, userID string, eventTypes []string, limit int) ([]*types.InteractionEvent, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apierr.BadRequest("user_id_required", "user id is required")
	}
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.events.ListByUser(dbctx.Context{Ctx: ctx}, userID, eventTypes, limit)
}

func (s *Service) UserStats(ctx context.Context, userID string) (*repos.UserStats, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apierr.BadRequest("user_id_required", "user id is required")
	}
	return s.events.UserStats(dbctx.Context{Ctx: ctx}, userID)
}

// Popular ranks products by event count; days limits counting to a recent window.
func (s *Service) Popular(ctx context.Context, limit int, eventTypes []string, days int) ([]repos.ProductCount, error) {
	if limit <= 0 {
		limit = 10
	}
	q := repos.PopularQuery{Types: eventTypes, Limit: limit}
	if days > 0 {
		since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
		q.Since = &since
	}
	return s.events.PopularProducts(dbctx.Context{Ctx: ctx}, q)
}
