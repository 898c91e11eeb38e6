package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RouterConfig carries the HTTP-only settings of the API.
type RouterConfig struct {
	AuthEnabled   bool
	Token         string
	BlockedGroups []string
}

// NewRouter creates a chi router with all API routes mounted.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// imageAbs resolves a store-relative image path to a file.
func NewRouter(eng Engine, imageAbs func(string) (string, error), cfg RouterConfig, sseHandler http.Handler) chi.Router {
	h := NewHandler(eng, cfg.BlockedGroups)
	ih := NewImageHandler(imageAbs)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(cfg.AuthEnabled, cfg.Token))

	r.Post("/dispatch", h.Dispatch)

	r.Get("/keywords", h.ListKeywords)
	r.Post("/keywords", h.CreateKeyword)
	r.Post("/keywords/{keyword}/images", h.UploadImages)

	r.Get("/aliases", h.ListAliases)
	r.Post("/aliases", h.RegisterAlias)
	r.Delete("/aliases/{alias}", h.RemoveAlias)

	r.Get("/usage", h.Usage)
	r.Get("/usage/counts", h.UsageCounts)

	r.Get("/images/*", ih.ServeFile)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
