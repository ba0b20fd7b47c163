package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	types "github.com/yungbote/catalog-search-backend/internal/domain"
)

func SeedProduct(tb testing.TB, ctx context.Context, tx *gorm.DB, id, name, category string) *types.Product {
	tb.Helper()
	p := &types.Product{
		ID:          id,
		Name:        name,
		Description: name + " description",
		CategoryID:  category,
		Category:    category,
		Status:      types.ProductStatusAvailable,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed product: %v", err)
	}
	return p
}

func SeedImage(tb testing.TB, ctx context.Context, tx *gorm.DB, productID, url string, ordinal int, position *int) *types.ProductImage {
	tb.Helper()
	img := &types.ProductImage{
		ProductID: productID,
		URL:       url,
		Ordinal:   ordinal,
		Position:  position,
	}
	if err := tx.WithContext(ctx).Create(img).Error; err != nil {
		tb.Fatalf("seed image: %v", err)
	}
	return img
}

func SeedEvent(tb testing.TB, ctx context.Context, tx *gorm.DB, userID, productID, eventType string, ts time.Time) *types.InteractionEvent {
	tb.Helper()
	e := &types.InteractionEvent{
		UserID:    userID,
		ProductID: productID,
		Type:      eventType,
		Timestamp: ts,
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed event: %v", err)
	}
	return e
}

func IntPtr(v int) *int { return &v }
