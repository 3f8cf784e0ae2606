package dto

import (
	"time"

	"firewatch/internal/service/ai"
)

// AlertEvent is raised when a frame carries fire or smoke worth acting on.
// It is pushed to /ws/alerts viewers; Frame stays server-side.
type AlertEvent struct {
	Type       string         `json:"type"`
	Time       time.Time      `json:"time"`
	Origin     string         `json:"origin"` // "stream" or "detect"
	Session    string         `json:"session,omitempty"`
	Source     string         `json:"source"`
	FrameSize  [2]int         `json:"frame_size"`
	Detections []ai.Detection `json:"detections"`
	Frame      []byte         `json:"-"`
}
