package api

import (
	"github.com/starford/randpic/internal/dispatch"
	"github.com/starford/randpic/internal/models"
)

// DispatchRequest is the request body for a dispatch.
type DispatchRequest struct {
	Trigger string `json:"trigger" example:"capoo" validate:"required"`
	UserID  string `json:"user_id" example:"10001"`
	GroupID string `json:"group_id" example:"20002"`
}

// DispatchResponse is a delivered image.
type DispatchResponse struct {
	dispatch.Result
	URL string `json:"url" example:"/api/images/capoo/ab12.png" validate:"required"`
}

// RateLimitedResponse is returned with 429.
type RateLimitedResponse struct {
	Error     string `json:"error" validate:"required"`
	Remaining int    `json:"remaining" example:"0"`
}

// CreateKeywordRequest is the request body for creating a keyword.
type CreateKeywordRequest struct {
	Name string `json:"name" example:"capoo" validate:"required"`
}

// KeywordListResponse wraps keyword stats.
type KeywordListResponse struct {
	Keywords []dispatch.KeywordStat `json:"keywords" validate:"required"`
}

// UploadResponse summarises a multipart upload.
type UploadResponse struct {
	Keyword    string         `json:"keyword" example:"capoo" validate:"required"`
	Stored     int            `json:"stored" example:"2"`
	Duplicates int            `json:"duplicates" example:"1"`
	Images     []models.Image `json:"images" validate:"required"`
}

// RegisterAliasRequest is the request body for registering an alias.
type RegisterAliasRequest struct {
	Alias   string `json:"alias" example:"neko" validate:"required"`
	Keyword string `json:"keyword" example:"capoo" validate:"required"`
}

// AliasListResponse wraps aliases.
type AliasListResponse struct {
	Aliases []models.Alias `json:"aliases" validate:"required"`
}

// UsageResponse wraps ledger events.
type UsageResponse struct {
	Events []models.UsageEvent `json:"events" validate:"required"`
}

// UsageCountsResponse wraps ledger aggregates.
type UsageCountsResponse struct {
	Counts []models.UsageCount `json:"counts" validate:"required"`
}
