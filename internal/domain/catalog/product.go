package catalog

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

const StatusAvailable = "AVAILABLE"

type Product struct {
	ID          string         `gorm:"column:id;primaryKey;size:64" json:"id"`
	Name        string         `gorm:"column:name;not null" json:"name"`
	Description string         `gorm:"column:description;type:text" json:"description"`
	TextIndexed string         `gorm:"column:text_indexed;type:text" json:"text_indexed,omitempty"`
	CategoryID  string         `gorm:"column:category_id;index" json:"category_id,omitempty"`
	Category    string         `gorm:"column:category;index" json:"category,omitempty"`
	Price       float64        `gorm:"column:price" json:"price"`
	Status      string         `gorm:"column:status;index" json:"status"`
	Metadata    datatypes.JSON `gorm:"type:jsonb;column:metadata" json:"metadata,omitempty"`

	Images []ProductImage `gorm:"foreignKey:ProductID;references:ID" json:"images,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Product) TableName() string { return "product" }

// IndexText is the text embedded for the product: the explicit override when
// present, otherwise "name. description".
func (p *Product) IndexText() string {
	if p == nil {
		return ""
	}
	if t := strings.TrimSpace(p.TextIndexed); t != "" {
		return t
	}
	return p.Name + ". " + p.Description
}

// CategoryKey groups products for diversity scoring; empty means uncategorized.
func (p *Product) CategoryKey() string {
	if p == nil {
		return ""
	}
	if c := strings.TrimSpace(p.CategoryID); c != "" {
		return c
	}
	return strings.TrimSpace(p.Category)
}
