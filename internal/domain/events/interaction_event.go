package events

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TypeView     = "view"
	TypeCart     = "cart"
	TypePurchase = "purchase"
	TypeWishlist = "wishlist"
)

var ValidTypes = []string{TypeView, TypeCart, TypePurchase, TypeWishlist}

func IsValidType(t string) bool {
	t = strings.ToLower(strings.TrimSpace(t))
	for _, v := range ValidTypes {
		if v == t {
			return true
		}
	}
	return false
}

// InteractionEvent is an append-only record of a shopper touching a product.
type InteractionEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string         `gorm:"column:user_id;size:64;not null;index:idx_event_user_ts,priority:1" json:"user_id"`
	ProductID string         `gorm:"column:product_id;size:64;not null;index" json:"product_id"`
	Type      string         `gorm:"column:type;size:16;not null;index" json:"type"`
	Timestamp time.Time      `gorm:"column:timestamp;not null;index:idx_event_user_ts,priority:2" json:"timestamp"`
	Metadata  datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`
}

func (InteractionEvent) TableName() string { return "interaction_event" }

func (e *InteractionEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
