package syncer

import (
	"context"
	"time"

	"docdex/internal/storage"
)

// SyncFolderStatus is the per-folder view served by the status endpoint.
type SyncFolderStatus struct {
	ID           string     `json:"id"`
	AgentID      string     `json:"agentId"`
	FolderPath   string     `json:"folderPath"`
	DisplayName  string     `json:"displayName"`
	Status       string     `json:"status"`
	FileCount    int        `json:"fileCount"`
	ChunkCount   int        `json:"chunkCount"`
	LastSyncedAt *time.Time `json:"lastSyncedAt,omitempty"`
	LastError    string     `json:"lastError,omitempty"`
}

// StatusReport aggregates the sync state of every registered folder.
type StatusReport struct {
	IsEnabled             bool               `json:"isEnabled"`
	IsSyncing             bool               `json:"isSyncing"`
	ActiveSyncs           []SyncFolderStatus `json:"activeSyncs"`
	PendingSyncs          []SyncFolderStatus `json:"pendingSyncs"`
	RecentErrors          []SyncFolderStatus `json:"recentErrors"`
	TotalFolders          int                `json:"totalFolders"`
	TotalSyncingOrPending int                `json:"totalSyncingOrPending"`
}

// Status partitions all folders by their persisted status. It reads one
// repository snapshot and mutates nothing, so it is safe to poll.
func (e *Engine) Status(ctx context.Context) (StatusReport, error) {
	folders, err := e.folders.ListAll(ctx)
	if err != nil {
		return StatusReport{}, err
	}

	report := StatusReport{
		IsEnabled:    e.enabled,
		ActiveSyncs:  []SyncFolderStatus{},
		PendingSyncs: []SyncFolderStatus{},
		RecentErrors: []SyncFolderStatus{},
		TotalFolders: len(folders),
	}
	for _, folder := range folders {
		entry := folderStatus(folder)
		switch folder.Status {
		case storage.StatusSyncing:
			report.ActiveSyncs = append(report.ActiveSyncs, entry)
		case storage.StatusPending:
			report.PendingSyncs = append(report.PendingSyncs, entry)
		case storage.StatusError:
			report.RecentErrors = append(report.RecentErrors, entry)
		}
	}
	report.IsSyncing = len(report.ActiveSyncs) > 0
	report.TotalSyncingOrPending = len(report.ActiveSyncs) + len(report.PendingSyncs)
	return report, nil
}

func folderStatus(folder *storage.SyncFolderRecord) SyncFolderStatus {
	return SyncFolderStatus{
		ID:           folder.ID,
		AgentID:      folder.AgentID,
		FolderPath:   folder.FolderPath,
		DisplayName:  folder.DisplayName,
		Status:       folder.Status,
		FileCount:    folder.FileCount,
		ChunkCount:   folder.ChunkCount,
		LastSyncedAt: folder.LastSyncedAt,
		LastError:    folder.LastError,
	}
}
