package stream

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

var (
	// ErrSourceUnavailable means the capture could not be opened.
	ErrSourceUnavailable = errors.New("cannot open stream")
	// ErrEndOfSource means the source has no more frames. It is not a failure.
	ErrEndOfSource = errors.New("end of source")
)

// FrameSource yields decoded BGR frames. The caller owns each returned Mat.
type FrameSource interface {
	Read() (gocv.Mat, error)
	Close() error
	Name() string
}

// CaptureSource reads from a device index, file, or stream URL.
type CaptureSource struct {
	capture *gocv.VideoCapture
	name    string
}

// OpenSource opens id with OpenCV. An empty id selects device 0; a numeric
// id is a device index.
func OpenSource(id string) (*CaptureSource, error) {
	if id == "" {
		id = "0"
	}
	capture, err := gocv.OpenVideoCapture(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, id, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, id)
	}
	return &CaptureSource{capture: capture, name: id}, nil
}

// Read returns the next frame, or ErrEndOfSource once the capture stops
// producing frames.
func (s *CaptureSource) Read() (gocv.Mat, error) {
	img := gocv.NewMat()
	if ok := s.capture.Read(&img); !ok || img.Empty() {
		img.Close()
		return gocv.Mat{}, ErrEndOfSource
	}
	return img, nil
}

func (s *CaptureSource) Close() error {
	return s.capture.Close()
}

func (s *CaptureSource) Name() string {
	return s.name
}
