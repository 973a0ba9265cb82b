// Package product defines the catalog records sold by the storefront.
package product

import "time"

// Product is a catalog entry. Deletion is soft: Active flips to false and the
// record stays in the store.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Category    string    `json:"category,omitempty"`
	Stock       int       `json:"stock"`
	ImageURL    string    `json:"image_url,omitempty"`
	Active      bool      `json:"active"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Filter narrows catalog listings.
type Filter struct {
	Category        string
	Search          string
	IncludeInactive bool
}
