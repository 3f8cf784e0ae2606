package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firewatch/internal/dto"
	"firewatch/internal/logger"
	"firewatch/internal/service/ai"
	"firewatch/internal/service/persistence"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// ErrImageSend ends a session whose encoded frame could not be delivered.
var ErrImageSend = errors.New("image send failed")

// Raw boxes below max(minBoxArea, frame area * minBoxFraction) are ignored.
const (
	minBoxArea     = 500
	minBoxFraction = 0.0003
)

// trackedClasses are masked and filtered, in output order.
var trackedClasses = []string{ai.LabelFire, ai.LabelSmoke}

// Observer receives frames that produced persistent detections.
type Observer func(dto.AlertEvent)

// Stats counts what a session did.
type Stats struct {
	Frames     int
	Persistent int
	MetaErrors int
	Started    time.Time
	Ended      time.Time
}

// Session processes one stream: read, detect, filter, draw, send. It owns
// its filter and closes its source on every exit path.
type Session struct {
	ID string

	source    FrameSource
	detector  ai.Detector
	filter    *persistence.Filter
	overlay   *ai.OverlayRenderer
	sender    Sender
	observers []Observer
	logger    *logger.Logger
	stats     Stats
}

func NewSession(source FrameSource, detector ai.Detector, sender Sender, logger *logger.Logger, observers ...Observer) *Session {
	return &Session{
		ID:        uuid.NewString(),
		source:    source,
		detector:  detector,
		filter:    persistence.NewFilter(),
		overlay:   ai.NewOverlayRenderer(),
		sender:    sender,
		observers: observers,
		logger:    logger,
	}
}

// Run loops until the source ends, ctx is cancelled, or a frame cannot be
// delivered. The end of the source and cancellation return nil. Cancellation
// is checked between frames; a frame in progress is finished first.
func (s *Session) Run(ctx context.Context) error {
	s.stats.Started = time.Now()
	defer func() {
		if cerr := s.source.Close(); cerr != nil {
			s.logger.Warning("Session %s: closing source %s: %v", s.ID, s.source.Name(), cerr)
		}
		s.stats.Ended = time.Now()
		s.logger.Info("Session %s ended after %d frames (%d with persistent detections)",
			s.ID, s.stats.Frames, s.stats.Persistent)
	}()

	s.logger.Info("Session %s started on source %s with %s detector", s.ID, s.source.Name(), s.detector.Name())

	for {
		if ctx.Err() != nil {
			return nil
		}

		frame, err := s.source.Read()
		if errors.Is(err, ErrEndOfSource) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read frame: %w", err)
		}

		err = s.processFrame(frame)
		frame.Close()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (s *Session) processFrame(frame gocv.Mat) error {
	w, h := frame.Cols(), frame.Rows()
	s.stats.Frames++

	raw, masks := rasterize(s.detector.Detect(frame), w, h)

	persistent := []ai.Detection{}
	for _, class := range trackedClasses {
		dets, _, err := s.filter.Update(class, masks[class])
		if err != nil {
			s.logger.Warning("Session %s: %s persistence: %v", s.ID, class, err)
			continue
		}
		persistent = append(persistent, dets...)
	}

	jpeg, err := s.overlay.RenderJPEG(frame, raw, persistent)
	if err != nil {
		return err
	}

	if err := s.sender.SendMetadata(dto.NewFrameMetadata(w, h, persistent)); err != nil {
		s.stats.MetaErrors++
		s.logger.Warning("Session %s: metadata send failed: %v", s.ID, err)
	}
	if err := s.sender.SendImage(jpeg); err != nil {
		return fmt.Errorf("%w: %w", ErrImageSend, err)
	}

	if len(persistent) > 0 {
		s.stats.Persistent++
		s.notify(dto.AlertEvent{
			Type:       "alert",
			Time:       time.Now().UTC(),
			Origin:     "stream",
			Session:    s.ID,
			Source:     s.source.Name(),
			FrameSize:  [2]int{w, h},
			Detections: persistent,
			Frame:      jpeg,
		})
	}
	return nil
}

func (s *Session) notify(ev dto.AlertEvent) {
	for _, o := range s.observers {
		o(ev)
	}
}

// Stats returns the counters; read it after Run returns.
func (s *Session) Stats() Stats {
	return s.stats
}

// MinBoxArea is the smallest raw box kept on a w x h frame.
func MinBoxArea(w, h int) int {
	return max(minBoxArea, int(float64(w*h)*minBoxFraction))
}

// rasterize drops small boxes and paints the rest into one mask per
// tracked class. Other labels are ignored.
func rasterize(dets []ai.Detection, w, h int) ([]ai.Detection, map[string]*persistence.Mask) {
	masks := make(map[string]*persistence.Mask, len(trackedClasses))
	for _, class := range trackedClasses {
		masks[class] = persistence.NewMask(w, h)
	}

	floor := MinBoxArea(w, h)
	var raw []ai.Detection
	for _, d := range dets {
		m, tracked := masks[d.Label]
		if !tracked || d.Box.Area() < floor {
			continue
		}
		m.FillRect(d.Box)
		raw = append(raw, d)
	}
	return raw, masks
}
