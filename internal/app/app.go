package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/dto"
	"firewatch/internal/handler"
	"firewatch/internal/logger"
	"firewatch/internal/repository/sqlite"
	"firewatch/internal/route"
	"firewatch/internal/service/ai"
	"firewatch/internal/service/alert"
	"firewatch/internal/service/drone"
	"firewatch/internal/service/notify"
	"firewatch/internal/service/storage"
	"firewatch/internal/service/stream"
	"firewatch/internal/service/websocket"

	"github.com/fatih/color"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	journal    *logger.Journal
	db         *sqlite.DB
	detector   ai.InitResult
	buffer     *storage.SnapshotBuffer
	hubService *websocket.HubService
	server     *http.Server
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)
	journal := logger.NewJournal(cfg)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		log.Close()
		journal.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	contacts := sqlite.NewContactRepository(db)
	snapshots := sqlite.NewSnapshotRepository(db)

	detector := ai.Init(ai.ModelOptions{
		WeightsPath:      cfg.ModelWeightsPath,
		ConfigPath:       cfg.ModelConfigPath,
		NamesPath:        cfg.ModelNamesPath,
		ConfidenceThresh: float32(cfg.ConfidenceThresh),
		NMSThresh:        float32(cfg.NMSThresh),
		InputSize:        cfg.ModelInputSize,
	}, log)

	dispatcher := alert.NewDispatcher(
		drone.NewController(cfg.DroneStepDelay, log),
		notify.NewService(cfg, log),
		contacts,
		alert.Target{Lat: cfg.DroneTargetLat, Lon: cfg.DroneTargetLon, Alt: cfg.DroneTargetAlt},
		log,
	)

	hub := websocket.NewHubService(log)
	buffer := storage.NewSnapshotBuffer(cfg, log, snapshots)

	record := func(ev dto.AlertEvent) {
		err := journal.Record(logger.JournalEntry{
			Timestamp:  ev.Time,
			Session:    ev.Session,
			Source:     ev.Source,
			FrameSize:  ev.FrameSize,
			Detections: ev.Detections,
		})
		if err != nil {
			log.Warning("Error writing detection journal: %v", err)
		}
	}
	observers := []stream.Observer{record, hub.Publish, func(ev dto.AlertEvent) { buffer.Add(ev) }}

	router := route.SetupRoutes(route.Dependencies{
		Config:     cfg,
		Logger:     log,
		Journal:    journal,
		Detector:   detector.Detector,
		Dispatcher: dispatcher,
		Open:       handler.OpenCaptureSource,
		Observers:  observers,
		Hub:        hub,
		Snapshots:  buffer,
		Contacts:   contacts,
		SnapRepo:   snapshots,
		Database:   db,
	})

	return &App{
		config:     cfg,
		logger:     log,
		journal:    journal,
		db:         db,
		detector:   detector,
		buffer:     buffer,
		hubService: hub,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves until ctx is cancelled, then shuts the server down and flushes
// pending snapshots.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	bgCtx, stopBackground := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.buffer.Run(bgCtx)
		close(done)
	}()
	go a.hubService.Run(bgCtx)

	a.banner()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.ListenAndServe()
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		a.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		err = a.server.Shutdown(shutdownCtx)
		cancel()
	}

	stopBackground()
	<-done

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) banner() {
	title := color.New(color.FgHiRed, color.Bold)
	key := color.New(color.FgCyan)

	title.Printf("🔥 Firewatch detection server\n")
	key.Printf("📍 URL: ")
	fmt.Printf("http://localhost:%d\n", a.config.Port)
	key.Printf("🔑 Auth: ")
	if a.config.AuthEnabled() {
		color.Green("enabled")
	} else {
		color.Yellow("disabled (FRONT_PASSWORD not set)")
	}
	key.Printf("🤖 Detector: ")
	if a.detector.Learned {
		color.Green("%s", a.detector.Detector.Name())
	} else {
		color.Yellow("%s (%v)", a.detector.Detector.Name(), a.detector.Err)
	}
	key.Printf("📁 Snapshots: ")
	fmt.Println(a.config.SnapshotDirectory)
	key.Printf("🗄  Database: ")
	fmt.Println(a.config.DatabasePath)
}

func (a *App) close() {
	if c, ok := a.detector.Detector.(interface{ Close() error }); ok {
		c.Close()
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database: %v", err)
	}
	a.journal.Close()
	a.logger.Close()
}
