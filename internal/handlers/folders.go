package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"docdex/internal/contextutil"
	"docdex/internal/storage"
	"docdex/internal/syncer"
)

// FolderHandler handles HTTP requests for folder registration and sync
// control.
type FolderHandler struct {
	svc     syncer.Service
	folders storage.FolderStore
}

// NewFolderHandler creates a new FolderHandler.
func NewFolderHandler(svc syncer.Service, folders storage.FolderStore) *FolderHandler {
	return &FolderHandler{svc: svc, folders: folders}
}

// CreateFolderRequest represents the payload for registering a folder.
//
// swagger:model CreateFolderRequest
type CreateFolderRequest struct {
	// Owning agent of the folder
	AgentID string `json:"agent_id"`

	// Absolute path of the folder to index
	FolderPath string `json:"folder_path"`

	// Optional display name; defaults to the folder's base name
	DisplayName string `json:"display_name,omitempty"`
}

// FolderResponse represents a registered folder.
//
// swagger:model FolderResponse
type FolderResponse struct {
	ID           string     `json:"id"`
	AgentID      string     `json:"agent_id"`
	FolderPath   string     `json:"folder_path"`
	DisplayName  string     `json:"display_name"`
	Status       string     `json:"status"`
	FileCount    int        `json:"file_count"`
	ChunkCount   int        `json:"chunk_count"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ListFoldersResponse represents the folder listing.
//
// swagger:model ListFoldersResponse
type ListFoldersResponse struct {
	Folders []FolderResponse `json:"folders"`
}

// FolderActionResponse represents the outcome of a pause or resume action.
//
// swagger:model FolderActionResponse
type FolderActionResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Create registers a folder for syncing and queues its first sync cycle.
func (h *FolderHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req CreateFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.AgentID) == "" {
		h.writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}
	if strings.TrimSpace(req.FolderPath) == "" {
		h.writeError(w, http.StatusBadRequest, "folder_path is required")
		return
	}

	record := &storage.SyncFolderRecord{
		AgentID:     strings.TrimSpace(req.AgentID),
		FolderPath:  strings.TrimSpace(req.FolderPath),
		DisplayName: strings.TrimSpace(req.DisplayName),
	}
	if err := h.svc.RegisterFolder(ctx, record); err != nil {
		h.handleRegisterError(w, r, err)
		return
	}

	// The record moves to syncing as soon as the first cycle is queued, so
	// the response reads back the persisted state.
	created, err := h.folders.GetByID(ctx, record.ID)
	if err != nil {
		logger.WarnContext(ctx, "failed to read back created folder", "folder_id", record.ID, "error", err)
		created = record
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(folderResponseFrom(created))
}

// List returns every registered folder.
func (h *FolderHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	folders, err := h.folders.ListAll(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list folders", "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to list folders")
		return
	}

	resp := ListFoldersResponse{Folders: make([]FolderResponse, len(folders))}
	for i, folder := range folders {
		resp.Folders[i] = folderResponseFrom(folder)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Delete unregisters a folder, removing its file rows and vectors.
func (h *FolderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	folderID := chi.URLParam(r, "id")

	if err := h.svc.UnregisterFolder(ctx, folderID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Folder not found")
			return
		}
		logger.ErrorContext(ctx, "failed to unregister folder", "folder_id", folderID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to unregister folder")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Trigger starts a sync cycle for the folder. A cycle already running or a
// paused folder yields a conflict with the skip reason.
func (h *FolderHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	folderID := chi.URLParam(r, "id")

	result, err := h.svc.Trigger(ctx, folderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Folder not found")
			return
		}
		logger.ErrorContext(ctx, "failed to trigger sync", "folder_id", folderID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to trigger sync")
		return
	}

	status := http.StatusAccepted
	if !result.Started() {
		status = http.StatusConflict
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}

// Pause suspends automatic and manual sync for the folder.
func (h *FolderHandler) Pause(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	folderID := chi.URLParam(r, "id")

	paused, err := h.svc.Pause(ctx, folderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Folder not found")
			return
		}
		logger.ErrorContext(ctx, "failed to pause folder", "folder_id", folderID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to pause folder")
		return
	}
	if !paused {
		h.writeError(w, http.StatusConflict, "Folder is currently syncing; pause once the cycle completes")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(FolderActionResponse{
		Message: "Folder sync paused.",
		Status:  "paused",
	})
}

// Resume lifts a pause and queues a catch-up sync cycle.
func (h *FolderHandler) Resume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	folderID := chi.URLParam(r, "id")

	resumed, err := h.svc.Resume(ctx, folderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "Folder not found")
			return
		}
		logger.ErrorContext(ctx, "failed to resume folder", "folder_id", folderID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "Failed to resume folder")
		return
	}
	if !resumed {
		h.writeError(w, http.StatusConflict, "Folder is not paused")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(FolderActionResponse{
		Message: "Folder sync resumed; a catch-up cycle was queued.",
		Status:  "resumed",
	})
}

// handleRegisterError maps registration failures to HTTP status codes.
func (h *FolderHandler) handleRegisterError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	logger.WarnContext(ctx, "failed to register folder", "error", err)

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "not accessible") || strings.Contains(errMsg, "not a directory") {
		h.writeError(w, http.StatusBadRequest, "folder_path must be an existing directory")
		return
	}
	if strings.Contains(errMsg, "unique constraint") {
		h.writeError(w, http.StatusConflict, "Folder is already registered for this agent")
		return
	}

	h.writeError(w, http.StatusInternalServerError, "Failed to register folder")
}

func folderResponseFrom(folder *storage.SyncFolderRecord) FolderResponse {
	return FolderResponse{
		ID:           folder.ID,
		AgentID:      folder.AgentID,
		FolderPath:   folder.FolderPath,
		DisplayName:  folder.DisplayName,
		Status:       folder.Status,
		FileCount:    folder.FileCount,
		ChunkCount:   folder.ChunkCount,
		LastSyncedAt: folder.LastSyncedAt,
		LastError:    folder.LastError,
		CreatedAt:    folder.CreatedAt,
		UpdatedAt:    folder.UpdatedAt,
	}
}

// writeError writes an error response.
func (h *FolderHandler) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
