package search

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ScopeText  = "text"
	ScopeImage = "image"
)

// EmbeddingRecord mirrors one datapoint of the vector index so candidates can be
// re-scored exactly without another provider call.
type EmbeddingRecord struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Scope       string         `gorm:"column:scope;size:16;not null;uniqueIndex:idx_embedding_scope_datapoint,priority:1" json:"scope"`
	DatapointID string         `gorm:"column:datapoint_id;size:160;not null;uniqueIndex:idx_embedding_scope_datapoint,priority:2" json:"datapoint_id"`
	ProductID   string         `gorm:"column:product_id;size:64;not null;index" json:"product_id"`
	Position    *int           `gorm:"column:position" json:"position,omitempty"`
	Source      string         `gorm:"column:source;type:text" json:"source"`
	ProductName string         `gorm:"column:product_name" json:"product_name,omitempty"`
	Embedding   datatypes.JSON `gorm:"type:jsonb;column:embedding" json:"embedding"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (EmbeddingRecord) TableName() string { return "embedding_record" }

func (r *EmbeddingRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Vector decodes the stored embedding; malformed rows decode to nil.
func (r *EmbeddingRecord) Vector() []float32 {
	if r == nil || len(r.Embedding) == 0 {
		return nil
	}
	var v []float32
	if err := json.Unmarshal(r.Embedding, &v); err != nil {
		return nil
	}
	return v
}

func EncodeVector(v []float32) datatypes.JSON {
	if v == nil {
		v = []float32{}
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}
