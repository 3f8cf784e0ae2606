package handler

import (
	"net/http"
	"path/filepath"

	"firewatch/internal/dto"
	"firewatch/internal/logger"
	"firewatch/internal/repository"
	"firewatch/internal/service/storage"
)

// ListSnapshotsHandler returns the most recent stored alert frames.
func ListSnapshotsHandler(logger *logger.Logger, buffer *storage.SnapshotBuffer,
	repo repository.SnapshotRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := atoiDefault(r.URL.Query().Get("limit"), 50)
		if limit <= 0 {
			limit = 50
		}

		snaps, err := repo.GetAll(limit)
		if err != nil {
			logger.Error("Error querying snapshots from database: %v", err)
			writeDetail(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		totalSize, err := repo.GetDirectorySize()
		if err != nil {
			logger.Error("Error getting snapshot directory size: %v", err)
			totalSize = 0
		}

		list := dto.SnapshotList{
			Snapshots: make([]dto.SnapshotInfo, 0, len(snaps)),
			Directory: buffer.Dir(),
			SizeBytes: totalSize,
			MaxBytes:  buffer.MaxBytes(),
		}
		for _, s := range snaps {
			labels, err := repo.GetLabels(s.ID)
			if err != nil {
				logger.Error("Error getting labels for snapshot %d: %v", s.ID, err)
			}
			if labels == nil {
				labels = []string{}
			}
			list.Snapshots = append(list.Snapshots, dto.SnapshotInfo{
				ID:        s.ID,
				Filename:  s.Filename,
				Source:    s.Source,
				Timestamp: s.Timestamp,
				Size:      s.FileSize,
				Labels:    labels,
			})
		}

		writeJSON(w, http.StatusOK, list)
	}
}

// ClearSnapshotsHandler deletes every stored snapshot from disk and database.
func ClearSnapshotsHandler(logger *logger.Logger, buffer *storage.SnapshotBuffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := buffer.Clear(); err != nil {
			logger.Error("Error clearing snapshots: %v", err)
			writeDetail(w, http.StatusInternalServerError, "Unable to clear snapshots")
			return
		}

		logger.Info("All snapshots cleared from directory: %s", buffer.Dir())
		w.WriteHeader(http.StatusNoContent)
	}
}

// ViewSnapshotHandler serves GET /snapshots/{filename}.
func ViewSnapshotHandler(buffer *storage.SnapshotBuffer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Base(r.PathValue("filename"))
		if name == "." || name == "/" || name == ".." {
			http.Error(w, "Filename required", http.StatusBadRequest)
			return
		}
		http.ServeFile(w, r, filepath.Join(buffer.Dir(), name))
	}
}
