package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"docdex/internal/handlers"
	"docdex/internal/search"
	"docdex/internal/storage"
	"docdex/internal/syncer"
	"docdex/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	SearchEngine search.Engine
	SyncService  syncer.Service
	Folders      storage.FolderStore
	DB           *sql.DB
	VectorStore  vectorstore.VectorStore
	Collection   string
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	// Add chi middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)

	// Add CORS middleware
	r.Use(CORS)

	searchHandler := handlers.NewSearchHandler(deps.SearchEngine)
	statusHandler := handlers.NewStatusHandler(deps.SyncService)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.VectorStore, deps.Collection)
	folderHandler := handlers.NewFolderHandler(deps.SyncService, deps.Folders)

	// Register API routes
	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Method(http.MethodPost, "/search", searchHandler)
		r.Method(http.MethodGet, "/sync/status", statusHandler)

		r.Route("/folders", func(r chi.Router) {
			r.Post("/", folderHandler.Create)
			r.Get("/", folderHandler.List)
			r.Delete("/{id}", folderHandler.Delete)
			r.Post("/{id}/sync", folderHandler.Trigger)
			r.Post("/{id}/pause", folderHandler.Pause)
			r.Post("/{id}/resume", folderHandler.Resume)
		})
	})

	return r
}
