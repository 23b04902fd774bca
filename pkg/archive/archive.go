// Package archive stores transcriptions in a local SQLite database with a
// synchronized full-text search index.
package archive

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("transcription not found")

// Transcription is a single persisted dictation result.
type Transcription struct {
	ID              int64     `json:"id"`
	Text            string    `json:"text"`
	DurationSeconds *float64  `json:"durationSeconds,omitempty"`
	TokensUsed      *int64    `json:"tokensUsed,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	IsFavorite      bool      `json:"isFavorite"`
}

// HistoryPage is one page of transcriptions plus the total count. For List
// the total is the unfiltered row count; for Search it is the match count.
type HistoryPage struct {
	Items []Transcription `json:"items"`
	Total int64           `json:"total"`
}

// Store defines the interface for transcription storage.
type Store interface {
	// Save inserts a new transcription with a store-assigned timestamp and
	// returns its id. The search index is updated in the same unit of work.
	Save(ctx context.Context, text string, durationSeconds float64) (int64, error)

	// List returns one page of transcriptions ordered newest first.
	// Page is 1-based; page values below 1 are clamped to 1. An out-of-range
	// page returns empty items with the correct total.
	List(ctx context.Context, page, limit int) (*HistoryPage, error)

	// Search returns transcriptions matching the query as a literal phrase
	// with a trailing prefix wildcard, ordered newest first.
	Search(ctx context.Context, query string, page, limit int) (*HistoryPage, error)

	// Delete removes one transcription and its index entry. It reports
	// whether a row was actually removed.
	Delete(ctx context.Context, id int64) (bool, error)

	// Clear removes all transcriptions and rebuilds the search index.
	Clear(ctx context.Context) error

	// ToggleFavorite flips the favorite flag and returns the resulting
	// state. Returns ErrNotFound if the id does not exist.
	ToggleFavorite(ctx context.Context, id int64) (bool, error)

	Close() error
}
