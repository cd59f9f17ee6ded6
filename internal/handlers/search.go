package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"docdex/internal/contextutil"
	"docdex/internal/search"
)

// SearchHandler handles HTTP requests for hybrid retrieval queries.
type SearchHandler struct {
	engine search.Engine
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(engine search.Engine) *SearchHandler {
	return &SearchHandler{engine: engine}
}

// SearchRequest represents the HTTP request payload for retrieval queries.
// This mirrors search.Request but is defined here for HTTP layer separation.
//
// swagger:model SearchRequest
type SearchRequest struct {
	// The query text to search for
	Query string `json:"query"`

	// Optional folder IDs to restrict the search to
	FolderIDs []string `json:"folder_ids,omitempty"`

	// Number of results to return (default 8, max 50)
	TopK int `json:"top_k,omitempty"`

	// Relevance/diversity trade-off for result selection (0..1, default 0.3)
	Lambda float64 `json:"lambda,omitempty"`
}

// SearchHitResponse represents one retrieval hit in the HTTP response.
//
// swagger:model SearchHitResponse
type SearchHitResponse struct {
	ID         string  `json:"id"`
	Score      float64 `json:"score"`
	Text       string  `json:"text"`
	Title      string  `json:"title,omitempty"`
	FolderID   string  `json:"folder_id"`
	RelPath    string  `json:"rel_path"`
	FilePath   string  `json:"file_path,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	StartLine  int     `json:"start_line,omitempty"`
	EndLine    int     `json:"end_line,omitempty"`
}

// SearchResponse represents the HTTP response payload for retrieval queries.
//
// swagger:model SearchResponse
type SearchResponse struct {
	Hits []SearchHitResponse `json:"hits"`
}

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles HTTP requests for retrieval queries.
//
// swagger:route POST /api/search searchChunks
//
// # Search indexed folders
//
// Runs a hybrid dense and lexical search across indexed folder content and
// returns the fused, diversified top hits.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Successful response with search hits
//	  schema:
//	    "$ref": "#/definitions/SearchResponse"
//	'400':
//	  description: Bad request (missing query)
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'502':
//	  description: Embedding service unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'503':
//	  description: Vector store unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		h.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		logger.WarnContext(ctx, "empty query in request")
		h.writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	result, err := h.engine.Search(ctx, search.Request{
		Query:     req.Query,
		FolderIDs: req.FolderIDs,
		TopK:      req.TopK,
		Lambda:    req.Lambda,
	})
	if err != nil {
		h.handleSearchError(w, r, err)
		return
	}

	hits := make([]SearchHitResponse, len(result.Hits))
	for i, hit := range result.Hits {
		hits[i] = SearchHitResponse{
			ID:         hit.ID,
			Score:      hit.Score,
			Text:       hit.Text,
			Title:      hit.Title,
			FolderID:   hit.FolderID,
			RelPath:    hit.RelPath,
			FilePath:   hit.FilePath,
			ChunkIndex: hit.ChunkIndex,
			StartLine:  hit.StartLine,
			EndLine:    hit.EndLine,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(SearchResponse{Hits: hits}); err != nil {
		logger.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// handleSearchError maps search engine errors to HTTP status codes.
func (h *SearchHandler) handleSearchError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	logger.ErrorContext(ctx, "search engine error", "error", err)

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "query is required") {
		h.writeError(w, http.StatusBadRequest, "Query is required")
		return
	}

	// Both retrieval paths down -> the store is the common dependency.
	if strings.Contains(errMsg, "qdrant") ||
		strings.Contains(errMsg, "vector store") ||
		strings.Contains(errMsg, "failed to query") {
		h.writeError(w, http.StatusServiceUnavailable, "Vector store unavailable")
		return
	}

	if strings.Contains(errMsg, "embed") {
		h.writeError(w, http.StatusBadGateway, "Embedding service unavailable")
		return
	}

	h.writeError(w, http.StatusInternalServerError, "Failed to process search")
}

// writeError writes an error response.
func (h *SearchHandler) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
