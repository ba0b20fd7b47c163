package catalog

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProductImage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProductID string    `gorm:"column:product_id;size:64;not null;index" json:"product_id"`
	URL       string    `gorm:"column:url;type:text;not null" json:"url"`
	Ordinal   int       `gorm:"column:ordinal;not null;default:0" json:"ordinal"`
	// Position overrides list order when set; unset images share the sentinel position.
	Position *int `gorm:"column:position" json:"position,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (ProductImage) TableName() string { return "product_image" }

func (i *ProductImage) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
