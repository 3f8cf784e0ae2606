package ai

import (
	"errors"

	"firewatch/internal/logger"

	"gocv.io/x/gocv"
)

var (
	// ErrModelLoad marks a startup failure to load the learned model.
	ErrModelLoad = errors.New("model load failed")
	// ErrInference marks a per-call failure of the learned model.
	ErrInference = errors.New("inference failed")
)

// Detector maps one BGR frame to zero or more detections. Implementations
// must be safe for concurrent use and must not retain the frame.
type Detector interface {
	Detect(frame gocv.Mat) []Detection
	Name() string
}

// InitResult is the outcome of detector selection at process start.
type InitResult struct {
	Detector Detector
	Learned  bool
	Err      error // why the learned detector is unavailable
}

// ModelOptions locate and tune the learned model.
type ModelOptions struct {
	WeightsPath      string
	ConfigPath       string
	NamesPath        string
	ConfidenceThresh float32
	NMSThresh        float32
	InputSize        int
}

// DefaultModelOptions returns the stock thresholds with no model files.
func DefaultModelOptions() ModelOptions {
	return ModelOptions{
		ConfidenceThresh: 0.45,
		NMSThresh:        0.4,
		InputSize:        416,
	}
}

// Init selects the process-wide detector once. A learned model that cannot
// be loaded leaves the heuristic detector in place for the process lifetime.
func Init(opts ModelOptions, logger *logger.Logger) InitResult {
	heuristic := NewHeuristicDetector()

	learned, err := NewLearnedDetector(opts, heuristic, logger)
	if err != nil {
		logger.Warning("Learned detector unavailable, using %s: %v", heuristic.Name(), err)
		return InitResult{Detector: heuristic, Err: err}
	}
	logger.Info("Learned detector loaded from %s", opts.WeightsPath)
	return InitResult{Detector: learned, Learned: true}
}
