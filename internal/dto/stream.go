package dto

import "firewatch/internal/service/ai"

// Handshake is the first message of a /ws/stream session. URL and Auth are
// accepted as aliases of Source and Credential.
type Handshake struct {
	Source     string `json:"source"`
	Credential string `json:"credential,omitempty"`
	URL        string `json:"url,omitempty"`
	Auth       string `json:"auth,omitempty"`
}

// DefaultDevice is opened when a handshake names no source.
const DefaultDevice = "0"

func (h Handshake) SourceID() string {
	if h.Source != "" {
		return h.Source
	}
	if h.URL != "" {
		return h.URL
	}
	return DefaultDevice
}

func (h Handshake) Secret() string {
	if h.Credential != "" {
		return h.Credential
	}
	return h.Auth
}

// FrameMetadata precedes every encoded frame on the stream.
type FrameMetadata struct {
	Type       string         `json:"type"`
	FrameSize  [2]int         `json:"frame_size"`
	Detections []ai.Detection `json:"detections"`
}

func NewFrameMetadata(width, height int, dets []ai.Detection) FrameMetadata {
	if dets == nil {
		dets = []ai.Detection{}
	}
	return FrameMetadata{Type: "detections", FrameSize: [2]int{width, height}, Detections: dets}
}

// ErrorMessage is the last message of a session that ends abnormally.
type ErrorMessage struct {
	Error string `json:"error"`
}

// DetectResponse is the body returned by POST /detect.
type DetectResponse struct {
	Detections []ai.Detection `json:"detections"`
}
