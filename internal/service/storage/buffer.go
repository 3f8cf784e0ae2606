package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"firewatch/internal/config"
	"firewatch/internal/dto"
	"firewatch/internal/logger"
	"firewatch/internal/model"
	"firewatch/internal/repository"

	"github.com/google/uuid"
)

// SnapshotBuffer keeps annotated alert frames in memory and periodically
// flushes them to disk and the snapshot tables.
type SnapshotBuffer struct {
	dir           string
	limit         int // per source, per flush window
	flushInterval time.Duration
	maxBytes      int64

	mu          sync.Mutex
	snapshots   []dto.BufferedSnapshot
	bufferCount map[string]int

	repo   repository.SnapshotRepository
	logger *logger.Logger
}

func NewSnapshotBuffer(cfg *config.Config, logger *logger.Logger, repo repository.SnapshotRepository) *SnapshotBuffer {
	return &SnapshotBuffer{
		dir:           cfg.SnapshotDirectory,
		limit:         cfg.SnapshotBufferLimit,
		flushInterval: cfg.SnapshotFlushInterval,
		maxBytes:      cfg.MaxSnapshotDirMB * 1024 * 1024,
		bufferCount:   make(map[string]int),
		repo:          repo,
		logger:        logger,
	}
}

// Run flushes on every tick and once more when ctx is done.
func (s *SnapshotBuffer) Run(ctx context.Context) {
	interval := s.flushInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-ticker.C:
			s.Flush()
		}
	}
}

// Add buffers a frame unless the source already filled its quota for the
// current window. It reports whether the frame was kept.
func (s *SnapshotBuffer) Add(ev dto.AlertEvent) bool {
	if len(ev.Frame) == 0 {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.limit > 0 && s.bufferCount[ev.Source] >= s.limit {
		return false
	}
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	s.snapshots = append(s.snapshots, dto.BufferedSnapshot{
		Timestamp:  ts,
		Source:     ev.Source,
		Detections: ev.Detections,
		Data:       ev.Frame,
	})
	s.bufferCount[ev.Source]++
	return true
}

// Pending returns how many frames wait for the next flush.
func (s *SnapshotBuffer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

// Flush writes buffered frames, records them, then trims the directory to
// its size limit. It returns how many frames were saved.
func (s *SnapshotBuffer) Flush() int {
	s.mu.Lock()
	pending := s.snapshots
	s.snapshots = nil
	s.bufferCount = make(map[string]int)
	s.mu.Unlock()

	if len(pending) == 0 {
		return 0
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		s.logger.Error("Error creating snapshot directory: %v", err)
		return 0
	}

	saved := 0
	for _, snap := range pending {
		filename := snapshotName(snap)
		fullpath := filepath.Join(s.dir, filename)

		if err := os.WriteFile(fullpath, snap.Data, 0644); err != nil {
			s.logger.Error("Error saving snapshot %s: %v", filename, err)
			continue
		}

		if s.repo != nil {
			rec := &model.Snapshot{
				Filename:  filename,
				Source:    snap.Source,
				Timestamp: snap.Timestamp,
				FilePath:  fullpath,
				FileSize:  int64(len(snap.Data)),
			}
			if _, err := s.repo.Insert(rec, snap.Detections); err != nil {
				s.logger.Error("Error saving snapshot %s to database: %v", filename, err)
				os.Remove(fullpath)
				continue
			}
		}
		saved++
	}

	s.logger.Info("Flushed %d snapshots to disk", saved)
	s.enforceLimit()
	return saved
}

// enforceLimit deletes the oldest snapshots while the recorded total
// exceeds maxBytes.
func (s *SnapshotBuffer) enforceLimit() {
	if s.repo == nil || s.maxBytes <= 0 {
		return
	}

	for {
		size, err := s.repo.GetDirectorySize()
		if err != nil {
			s.logger.Error("Error reading snapshot directory size: %v", err)
			return
		}
		if size <= s.maxBytes {
			return
		}

		oldest, err := s.repo.Oldest(16)
		if err != nil || len(oldest) == 0 {
			return
		}
		for _, snap := range oldest {
			if err := os.Remove(snap.FilePath); err != nil && !os.IsNotExist(err) {
				s.logger.Warning("Error removing snapshot file %s: %v", snap.FilePath, err)
			}
			if err := s.repo.Delete(snap.ID); err != nil {
				s.logger.Error("Error deleting snapshot %d: %v", snap.ID, err)
				return
			}
			size -= snap.FileSize
			if size <= s.maxBytes {
				return
			}
		}
	}
}

// Clear removes every stored snapshot file and record.
func (s *SnapshotBuffer) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read snapshot directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jpg") {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			s.logger.Warning("Error removing %s: %v", e.Name(), err)
		}
	}
	if s.repo != nil {
		return s.repo.DeleteAll()
	}
	return nil
}

// Dir is where snapshots are written.
func (s *SnapshotBuffer) Dir() string {
	return s.dir
}

func (s *SnapshotBuffer) MaxBytes() int64 {
	return s.maxBytes
}

// snapshotName is timestamp_source_labels_id.jpg with the source made
// filesystem safe.
func snapshotName(snap dto.BufferedSnapshot) string {
	seen := map[string]bool{}
	var labels []string
	for _, d := range snap.Detections {
		if !seen[d.Label] {
			seen[d.Label] = true
			labels = append(labels, sanitize(d.Label))
		}
	}
	sort.Strings(labels)
	if len(labels) == 0 {
		labels = []string{"none"}
	}

	return fmt.Sprintf("%s_%s_%s_%s.jpg",
		snap.Timestamp.UTC().Format(snapshotTimeLayout),
		sanitize(snap.Source),
		strings.Join(labels, "-"),
		uuid.NewString()[:8])
}

func sanitize(s string) string {
	if s == "" {
		return "src"
	}
	out := []rune(s)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		default:
			out[i] = '-'
		}
	}
	if len(out) > 40 {
		out = out[len(out)-40:]
	}
	return string(out)
}
