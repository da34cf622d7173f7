package readmodel

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductCache is the denormalized product projection each service keeps
// locally. It holds only display-relevant fields, is written exclusively by
// that service's bus consumer, and may be stale or briefly absent relative
// to the catalog service.
type ProductCache struct {
	ID              string         `json:"id"`
	SKU             string         `json:"sku"`
	Name            string         `json:"name"`
	PrimaryImageURL string         `json:"primaryImageUrl,omitempty"`
	Categories      []string       `json:"categories,omitempty"`
	Variants        []VariantCache `json:"variants,omitempty"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// VariantCache is the cached shape of one purchasable variant.
type VariantCache struct {
	ID    string          `json:"id"`
	SKU   string          `json:"sku"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// Variant returns the cached variant with the given id.
func (p *ProductCache) Variant(variantID string) (VariantCache, bool) {
	for _, v := range p.Variants {
		if v.ID == variantID {
			return v, true
		}
	}
	return VariantCache{}, false
}

// UserCache is the denormalized user projection built from the auth topic.
type UserCache struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	ProfileImage string    `json:"profileImage,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DailyAggregate is a per-day counter maintained by the stats pipeline.
// Increments are deduplicated by a natural event key, which keeps the
// counter stable under redelivery but not under a full-history rebuild that
// reuses the same dedup set.
type DailyAggregate struct {
	Day   string `json:"day"` // YYYY-MM-DD
	Count int    `json:"count"`
}
