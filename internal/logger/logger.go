package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"

	"firewatch/internal/config"

	"github.com/natefinch/lumberjack"
)

// Levels exposed through the log endpoints.
var Levels = []string{"info", "warning", "error"}

// Logger provides leveled logging (info/warning/error) to rotating files and stdout/stderr.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	files      map[string]*lumberjack.Logger
	logDir     string
	mu         sync.Mutex
}

// NewLogger creates a Logger and ensures the log directory exists.
func NewLogger(cfg *config.Config) *Logger {
	if err := os.MkdirAll(cfg.LogDirectory, 0755); err != nil {
		log.Fatalf("Failed to create log directory: %v", err)
	}

	l := &Logger{
		logDir: cfg.LogDirectory,
		files:  make(map[string]*lumberjack.Logger, len(Levels)),
	}
	for _, level := range Levels {
		l.files[level] = rotatingFile(cfg, level+".log")
	}

	l.infoLog = log.New(io.MultiWriter(os.Stdout, l.files["info"]), "ℹ️  INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(io.MultiWriter(os.Stdout, l.files["warning"]), "⚠️  WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(io.MultiWriter(os.Stderr, l.files["error"]), "❌ ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
	return l
}

func rotatingFile(cfg *config.Config, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDirectory, name),
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAge:     cfg.LogMaxAgeDays,
	}
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Output(2, fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Output(2, fmt.Sprintf(format, v...))
}

// FilePath returns the active file for a level, or "" for an unknown level.
func (l *Logger) FilePath(level string) string {
	if _, ok := l.files[level]; !ok {
		return ""
	}
	return filepath.Join(l.logDir, level+".log")
}

// CleanLogs starts a fresh file for the level; the previous content is kept
// as a lumberjack backup until MaxBackups/MaxAge prune it.
func (l *Logger) CleanLogs(level string) error {
	l.mu.Lock()
	f, ok := l.files[level]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}

	if err := f.Rotate(); err != nil {
		l.Error("Error rotating %s log: %v", level, err)
		return err
	}
	l.Info("%s log has been cleared.", level)
	return nil
}

// Close flushes and closes every level file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
