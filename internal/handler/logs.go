package handler

import (
	"net/http"
	"os"

	"firewatch/internal/logger"
)

// journalLevel selects the detection journal on the log endpoints.
const journalLevel = "detections"

// ShowLogsHandler serves /logs/{level} as text/plain. The level is one of
// logger.Levels or "detections" for the JSON-lines journal.
func ShowLogsHandler(logger *logger.Logger, journal *logger.Journal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level := r.PathValue("level")

		path := logger.FilePath(level)
		if level == journalLevel && journal != nil {
			path = journal.Path()
		}
		if path == "" {
			http.Error(w, "Unknown log: "+level, http.StatusNotFound)
			return
		}
		serveLogFile(w, r, path)
	}
}

// serveLogFile sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found"))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, path)
}

// ClearLogsHandler starts a fresh file for /logs/{level}.
func ClearLogsHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		level := r.PathValue("level")
		if logger.FilePath(level) == "" {
			http.Error(w, "Unknown log: "+level, http.StatusNotFound)
			return
		}
		if err := logger.CleanLogs(level); err != nil {
			writeDetail(w, http.StatusInternalServerError, "Error clearing log")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
