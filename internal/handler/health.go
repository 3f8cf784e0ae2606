package handler

import (
	"net/http"

	"firewatch/internal/logger"
)

// HealthHandler reports liveness and which detector is serving.
func HealthHandler(detectorName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "detector": detectorName})
	}
}

// DatabaseInspector is the part of the store /db_check reports on.
type DatabaseInspector interface {
	Path() string
	Tables() ([]string, error)
}

// DBCheckHandler lists the store's tables.
func DBCheckHandler(logger *logger.Logger, db DatabaseInspector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tables, err := db.Tables()
		if err != nil {
			logger.Error("Database check failed: %v", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "db_path": db.Path(), "tables": tables})
	}
}
