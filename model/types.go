// Package model defines the core data structures for pricewatch.
package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Status describes the outcome of the most recent update attempt for an item.
type Status string

const (
	// StatusChecking is the initial state before any update has completed.
	StatusChecking Status = "checking"
	// StatusSuccess means the last fetch for the item succeeded.
	StatusSuccess Status = "success"
	// StatusError means the last fetch for the item failed.
	StatusError Status = "error"
)

// TrackedItem is a registry entry for a product page under tracking.
// URL is the unique key across all active entries.
type TrackedItem struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Status Status `json:"status,omitempty"`
}

// Validate checks if the item has required fields.
func (t *TrackedItem) Validate() error {
	if t.URL == "" {
		return errors.New("item URL is required")
	}
	if t.Name == "" {
		return errors.New("item name is required")
	}
	return nil
}

// HistoryEntry is a removed TrackedItem plus the time of removal.
// Entries are append-only; one is deleted only when the item is restored.
type HistoryEntry struct {
	TrackedItem
	RemovedAt time.Time `json:"removed_at"`
}

// PriceSample is one row of an item's price series: one sample per calendar
// day, price formatted to exactly two decimal places. The field names double
// as the CSV header of the backing file.
type PriceSample struct {
	Date  string `json:"Date"`
	Price string `json:"Price"`
}

// Metadata is the latest snapshot of an item's page, fully replaced on every
// successful fetch.
type Metadata struct {
	Price      decimal.Decimal `json:"price"`
	Title      string          `json:"title"`
	URL        string          `json:"url"`
	Thumbnail  string          `json:"thumbnail,omitempty"`
	LastUpdate time.Time       `json:"last_update"`
}

// IsEmpty reports whether the snapshot has never been written.
func (m Metadata) IsEmpty() bool {
	return m.URL == "" && m.Title == "" && m.LastUpdate.IsZero()
}

// ItemResult is what a single successful fetch yields.
type ItemResult struct {
	Price     decimal.Decimal `json:"price"`
	Title     string          `json:"title"`
	URL       string          `json:"url"`
	Thumbnail string          `json:"thumbnail,omitempty"`
}

// Metadata converts the fetch result into a snapshot stamped at now.
func (r *ItemResult) Metadata(now time.Time) Metadata {
	return Metadata{
		Price:      r.Price,
		Title:      r.Title,
		URL:        r.URL,
		Thumbnail:  r.Thumbnail,
		LastUpdate: now,
	}
}

// ItemData is the read projection served to the dashboard: latest snapshot,
// full price series and the display name from the registry.
type ItemData struct {
	Metadata     Metadata      `json:"metadata"`
	PriceHistory []PriceSample `json:"price_history"`
	Name         string        `json:"name"`
}
