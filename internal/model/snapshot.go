package model

import "time"

// Snapshot is a stored annotated frame.
type Snapshot struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
	FilePath  string    `json:"filepath"`
	FileSize  int64     `json:"filesize"`
}

// SnapshotDetection is one region recorded with a snapshot.
type SnapshotDetection struct {
	ID         int64    `json:"id"`
	SnapshotID int64    `json:"snapshot_id"`
	Label      string   `json:"label"`
	Score      *float64 `json:"score"`
	X          int      `json:"x"`
	Y          int      `json:"y"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
}
