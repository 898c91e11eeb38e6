// Package models defines the domain types for randpic.
package models

import "time"

// Keyword is a named image collection. Dir is its partition under the store root.
type Keyword struct {
	Name      string    `json:"name"`
	Dir       string    `json:"dir"`
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// Image is one stored picture, unique by Hash within its keyword.
type Image struct {
	Keyword   string    `json:"keyword"`
	Hash      string    `json:"hash"`
	Path      string    `json:"path"` // relative to the store root, slash separated
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Alias maps an alternate trigger to a keyword.
type Alias struct {
	Alias     string    `json:"alias"`
	Keyword   string    `json:"keyword"`
	CreatedAt time.Time `json:"created_at"`
}

// UsageEvent is one row of the dispatch ledger.
type UsageEvent struct {
	ID        string    `json:"id"`
	Keyword   string    `json:"keyword"`
	UserID    string    `json:"user_id"`
	GroupID   string    `json:"group_id"`
	CreatedAt time.Time `json:"created_at"`
}

// UsageFilter narrows ledger queries. Zero fields match everything.
type UsageFilter struct {
	Keyword string
	UserID  string
	GroupID string
	Since   time.Time
	Until   time.Time
	Limit   int
}

// UsageCount aggregates dispatches per keyword, group and user.
type UsageCount struct {
	Keyword string `json:"keyword"`
	GroupID string `json:"group_id"`
	UserID  string `json:"user_id"`
	Count   int    `json:"count"`
}

// FileMetadata describes an image file found on disk.
type FileMetadata struct {
	Keyword   string
	Path      string
	UpdatedAt time.Time
}
