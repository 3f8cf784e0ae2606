package route

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"firewatch/internal/config"
	"firewatch/internal/handler"
	"firewatch/internal/logger"
	"firewatch/internal/middleware"
	"firewatch/internal/repository"
	"firewatch/internal/service/ai"
	"firewatch/internal/service/storage"
	"firewatch/internal/service/stream"
	"firewatch/internal/service/websocket"
)

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Config     *config.Config
	Logger     *logger.Logger
	Journal    *logger.Journal
	Detector   ai.Detector
	Dispatcher handler.AlertDispatcher
	Open       handler.SourceOpener
	Observers  []stream.Observer
	Hub        *websocket.HubService
	Snapshots  *storage.SnapshotBuffer
	Contacts   repository.ContactRepository
	SnapRepo   repository.SnapshotRepository
	Database   handler.DatabaseInspector
}

// dynamicHTMLHandler serves /path as <static>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "/index"
		}
		if strings.Contains(path, "..") {
			http.NotFound(w, r)
			return
		}

		filePath := filepath.Join(staticDir, path+".html")
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers the HTTP and WebSocket endpoints, static file
// serving, and wraps the mux with the authentication middleware.
func SetupRoutes(d Dependencies) http.Handler {
	cfg, log := d.Config, d.Logger
	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDirectory))))

	mux.HandleFunc("GET /health", handler.HealthHandler(d.Detector.Name()))
	mux.HandleFunc("GET /db_check", handler.DBCheckHandler(log, d.Database))

	// Detection
	mux.HandleFunc("POST /detect", handler.DetectHandler(log, d.Detector, d.Dispatcher, d.Observers...))
	mux.HandleFunc("GET /ws/stream", handler.StreamHandler(cfg, log, d.Detector, d.Open, d.Observers...))
	mux.HandleFunc("GET /ws/alerts", handler.AlertsWebsocketHandler(d.Hub, log))

	// Contacts
	mux.HandleFunc("POST /contacts", handler.CreateContactHandler(log, d.Contacts))
	mux.HandleFunc("GET /contacts", handler.ListContactsHandler(log, d.Contacts))
	mux.HandleFunc("DELETE /contacts/{id}", handler.DeleteContactHandler(log, d.Contacts))

	// Snapshots
	mux.HandleFunc("GET /snapshots", handler.ListSnapshotsHandler(log, d.Snapshots, d.SnapRepo))
	mux.HandleFunc("DELETE /snapshots", handler.ClearSnapshotsHandler(log, d.Snapshots))
	mux.HandleFunc("GET /snapshots/{filename}", handler.ViewSnapshotHandler(d.Snapshots))

	// Log endpoints
	mux.HandleFunc("GET /logs/{level}", handler.ShowLogsHandler(log, d.Journal))
	mux.HandleFunc("DELETE /logs/{level}", handler.ClearLogsHandler(log))

	// Auth endpoints
	mux.HandleFunc("POST /auth/login", handler.LoginHandler(cfg, log))
	mux.HandleFunc("POST /auth/logout", handler.LogoutHandler())

	// Automatic HTML handler mapping for example: /settings -> /static/settings.html
	mux.HandleFunc("GET /", dynamicHTMLHandler(cfg.StaticDirectory))

	return middleware.AuthMiddleware(cfg)(mux)
}
