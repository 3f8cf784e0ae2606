package dto

import (
	"time"

	"firewatch/internal/service/ai"
)

// BufferedSnapshot holds an annotated frame before it is flushed to disk.
type BufferedSnapshot struct {
	Timestamp  time.Time
	Source     string
	Detections []ai.Detection
	Data       []byte
}

// SnapshotList is the body of GET /snapshots.
type SnapshotList struct {
	Snapshots []SnapshotInfo `json:"snapshots"`
	Directory string         `json:"directory"`
	SizeBytes int64          `json:"size_bytes"`
	MaxBytes  int64          `json:"max_bytes"`
}

type SnapshotInfo struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
	Labels    []string  `json:"labels"`
}
