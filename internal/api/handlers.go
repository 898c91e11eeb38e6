package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/randpic/internal/apperr"
	"github.com/starford/randpic/internal/dispatch"
	"github.com/starford/randpic/internal/models"
)

const maxUploadBytes = 50 << 20 // 50 MB

// Engine is the dispatch service as seen by the HTTP layer.
type Engine interface {
	Dispatch(ctx context.Context, trigger, userID, groupID string) (dispatch.Result, error)
	AddImage(ctx context.Context, keyword string, data []byte, nameHint string) (dispatch.AddResult, error)
	CreateKeyword(ctx context.Context, name string) (models.Keyword, error)
	Keywords(ctx context.Context) ([]dispatch.KeywordStat, error)
	RegisterAlias(ctx context.Context, alias, keyword string) (models.Alias, error)
	RemoveAlias(ctx context.Context, alias string) error
	Aliases() []models.Alias
	Usage(ctx context.Context, f models.UsageFilter) ([]models.UsageEvent, error)
	UsageCounts(ctx context.Context, f models.UsageFilter) ([]models.UsageCount, error)
	Remaining(userID string) int
}

// Handler holds API route handlers.
type Handler struct {
	eng     Engine
	blocked map[string]struct{}
}

// NewHandler creates a new Handler. Dispatches from blockedGroups are ignored.
func NewHandler(eng Engine, blockedGroups []string) *Handler {
	h := &Handler{eng: eng, blocked: make(map[string]struct{}, len(blockedGroups))}
	for _, g := range blockedGroups {
		h.blocked[g] = struct{}{}
	}
	return h
}

// imageURL builds the public URL of a stored image.
func imageURL(path string) string {
	return "/api/images/" + (&url.URL{Path: path}).EscapedPath()
}

// Dispatch handles POST /api/dispatch.
//
//	@Summary		Resolve a trigger and return a random image
//	@Tags			dispatch
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DispatchRequest	true	"Trigger and caller"
//	@Success		200		{object}	DispatchResponse
//	@Success		204		"Unknown trigger or blocked group"
//	@Failure		404		{object}	errResponse
//	@Failure		429		{object}	RateLimitedResponse
//	@Security		BearerAuth
//	@Router			/dispatch [post]
func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if _, ok := h.blocked[req.GroupID]; ok && req.GroupID != "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	res, err := h.eng.Dispatch(r.Context(), req.Trigger, req.UserID, req.GroupID)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrUnknownTrigger):
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, apperr.ErrRateLimited):
			writeJSON(w, http.StatusTooManyRequests, RateLimitedResponse{
				Error:     "rate limited",
				Remaining: h.eng.Remaining(req.UserID),
			})
		default:
			writeError(w, "dispatch", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, DispatchResponse{Result: res, URL: imageURL(res.Image.Path)})
}

// ListKeywords handles GET /api/keywords.
//
//	@Summary		List keywords with image counts
//	@Tags			keywords
//	@Produce		json
//	@Success		200	{object}	KeywordListResponse
//	@Security		BearerAuth
//	@Router			/keywords [get]
func (h *Handler) ListKeywords(w http.ResponseWriter, r *http.Request) {
	stats, err := h.eng.Keywords(r.Context())
	if err != nil {
		writeError(w, "list keywords", err)
		return
	}
	writeJSON(w, http.StatusOK, KeywordListResponse{Keywords: stats})
}

// CreateKeyword handles POST /api/keywords.
//
//	@Summary		Create a keyword
//	@Tags			keywords
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateKeywordRequest	true	"Keyword to create"
//	@Success		201		{object}	models.Keyword
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/keywords [post]
func (h *Handler) CreateKeyword(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateKeywordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	k, err := h.eng.CreateKeyword(r.Context(), req.Name)
	if err != nil {
		writeError(w, "create keyword", err)
		return
	}
	writeJSON(w, http.StatusCreated, k)
}

// UploadImages handles POST /api/keywords/{keyword}/images
// (multipart/form-data, one or more "file" fields).
//
//	@Summary		Upload images into a keyword, creating it if needed
//	@Tags			keywords
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			keyword	path		string	true	"Keyword"
//	@Param			file	formData	file	true	"Image file"
//	@Success		201		{object}	UploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/keywords/{keyword}/images [post]
func (h *Handler) UploadImages(w http.ResponseWriter, r *http.Request) {
	keyword, err := url.PathUnescape(chi.URLParam(r, "keyword"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid keyword"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}
	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}

	resp := UploadResponse{Keyword: keyword, Images: make([]models.Image, 0, len(headers))}
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to open upload"))
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
			return
		}
		res, err := h.eng.AddImage(r.Context(), keyword, data, fh.Filename)
		if err != nil {
			writeError(w, "upload image", err)
			return
		}
		if res.Stored {
			resp.Stored++
		} else {
			resp.Duplicates++
		}
		resp.Images = append(resp.Images, res.Image)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ListAliases handles GET /api/aliases.
//
//	@Summary		List aliases
//	@Tags			aliases
//	@Produce		json
//	@Success		200	{object}	AliasListResponse
//	@Security		BearerAuth
//	@Router			/aliases [get]
func (h *Handler) ListAliases(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, AliasListResponse{Aliases: h.eng.Aliases()})
}

// RegisterAlias handles POST /api/aliases.
//
//	@Summary		Register an alias for a keyword
//	@Tags			aliases
//	@Accept			json
//	@Produce		json
//	@Param			body	body		RegisterAliasRequest	true	"Alias and target"
//	@Success		201		{object}	models.Alias
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/aliases [post]
func (h *Handler) RegisterAlias(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req RegisterAliasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	a, err := h.eng.RegisterAlias(r.Context(), req.Alias, req.Keyword)
	if err != nil {
		writeError(w, "register alias", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// RemoveAlias handles DELETE /api/aliases/{alias}.
//
//	@Summary		Remove an alias
//	@Tags			aliases
//	@Param			alias	path	string	true	"Alias"
//	@Success		204		"Alias removed"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/aliases/{alias} [delete]
func (h *Handler) RemoveAlias(w http.ResponseWriter, r *http.Request) {
	alias, err := url.PathUnescape(chi.URLParam(r, "alias"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid alias"))
		return
	}
	if err := h.eng.RemoveAlias(r.Context(), alias); err != nil {
		writeError(w, "remove alias", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseUsageFilter reads keyword, user_id, group_id, since, until (RFC 3339)
// and limit from the query string.
func parseUsageFilter(r *http.Request) (models.UsageFilter, error) {
	q := r.URL.Query()
	f := models.UsageFilter{
		Keyword: q.Get("keyword"),
		UserID:  q.Get("user_id"),
		GroupID: q.Get("group_id"),
	}
	var err error
	if v := q.Get("since"); v != "" {
		if f.Since, err = time.Parse(time.RFC3339, v); err != nil {
			return f, errors.New("since must be RFC 3339")
		}
	}
	if v := q.Get("until"); v != "" {
		if f.Until, err = time.Parse(time.RFC3339, v); err != nil {
			return f, errors.New("until must be RFC 3339")
		}
	}
	if v := q.Get("limit"); v != "" {
		if f.Limit, err = strconv.Atoi(v); err != nil || f.Limit < 0 {
			return f, errors.New("limit must be a non-negative integer")
		}
	}
	return f, nil
}

// Usage handles GET /api/usage.
//
//	@Summary		List dispatch ledger events
//	@Tags			usage
//	@Produce		json
//	@Param			keyword		query		string	false	"Keyword"
//	@Param			user_id		query		string	false	"User"
//	@Param			group_id	query		string	false	"Group"
//	@Param			since		query		string	false	"RFC 3339 lower bound"
//	@Param			until		query		string	false	"RFC 3339 upper bound"
//	@Param			limit		query		int		false	"Max events"
//	@Success		200			{object}	UsageResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/usage [get]
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	f, err := parseUsageFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	events, err := h.eng.Usage(r.Context(), f)
	if err != nil {
		writeError(w, "usage", err)
		return
	}
	if events == nil {
		events = []models.UsageEvent{}
	}
	writeJSON(w, http.StatusOK, UsageResponse{Events: events})
}

// UsageCounts handles GET /api/usage/counts.
//
//	@Summary		Aggregate dispatches per keyword, group and user
//	@Tags			usage
//	@Produce		json
//	@Success		200	{object}	UsageCountsResponse
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/usage/counts [get]
func (h *Handler) UsageCounts(w http.ResponseWriter, r *http.Request) {
	f, err := parseUsageFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	counts, err := h.eng.UsageCounts(r.Context(), f)
	if err != nil {
		writeError(w, "usage counts", err)
		return
	}
	if counts == nil {
		counts = []models.UsageCount{}
	}
	writeJSON(w, http.StatusOK, UsageCountsResponse{Counts: counts})
}

// ImageHandler serves stored image files.
type ImageHandler struct {
	abs func(rel string) (string, error)
}

// NewImageHandler creates a handler resolving paths with abs, which must
// reject paths escaping the store root.
func NewImageHandler(abs func(rel string) (string, error)) *ImageHandler {
	return &ImageHandler{abs: abs}
}

// ServeFile handles GET /api/images/*.
func (h *ImageHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if decoded, err := url.PathUnescape(rel); err == nil {
		rel = decoded
	}
	for _, seg := range strings.Split(rel, "/") {
		if seg == "" || strings.HasPrefix(seg, ".") {
			http.NotFound(w, r)
			return
		}
	}
	abs, err := h.abs(rel)
	if err != nil {
		slog.Debug("image path rejected", slog.String("path", rel), slog.String("error", err.Error()))
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}
	http.ServeFile(w, r, abs)
}
