package logger

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	"firewatch/internal/config"

	"github.com/natefinch/lumberjack"
)

// JournalEntry is one line of detections.log.
type JournalEntry struct {
	Timestamp  time.Time   `json:"timestamp"`
	Session    string      `json:"session,omitempty"`
	Source     string      `json:"source"`
	FrameSize  [2]int      `json:"frame_size"`
	Detections interface{} `json:"detections"`
}

// Journal appends detection events as JSON lines to a rotating file.
type Journal struct {
	mu  sync.Mutex
	out *lumberjack.Logger
}

func NewJournal(cfg *config.Config) *Journal {
	return &Journal{out: rotatingFile(cfg, "detections.log")}
}

func (j *Journal) Record(entry JournalEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = j.out.Write(line)
	return err
}

// Path of the journal file.
func (j *Journal) Path() string {
	return filepath.Clean(j.out.Filename)
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.out.Close()
}
