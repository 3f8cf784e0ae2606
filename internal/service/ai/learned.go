package ai

import (
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"
	"sync"

	"firewatch/internal/logger"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"
)

// inferFunc runs the model on one frame.
type inferFunc func(frame gocv.Mat) ([]Detection, error)

// LearnedDetector wraps a darknet-style network. The network is not
// reentrant, so calls are serialized.
type LearnedDetector struct {
	mu       sync.Mutex
	net      gocv.Net
	opts     ModelOptions
	names    []string
	infer    inferFunc
	fallback Detector
	logger   *logger.Logger
}

// NewLearnedDetector loads the network and its name table. Frames the network
// fails on are answered by fallback.
func NewLearnedDetector(opts ModelOptions, fallback Detector, logger *logger.Logger) (*LearnedDetector, error) {
	if opts.WeightsPath == "" || opts.ConfigPath == "" {
		return nil, xerrors.Errorf("no model configured: %w", ErrModelLoad)
	}
	if _, err := os.Stat(opts.WeightsPath); err != nil {
		return nil, xerrors.Errorf("weights %s: %v: %w", opts.WeightsPath, err, ErrModelLoad)
	}
	if _, err := os.Stat(opts.ConfigPath); err != nil {
		return nil, xerrors.Errorf("config %s: %v: %w", opts.ConfigPath, err, ErrModelLoad)
	}

	net, err := readNet(opts.WeightsPath, opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	names, err := loadNames(opts.NamesPath)
	if err != nil {
		logger.Warning("Class names unavailable, labels will be indices: %v", err)
	}

	if opts.InputSize <= 0 {
		opts.InputSize = DefaultModelOptions().InputSize
	}

	d := &LearnedDetector{
		net:      net,
		opts:     opts,
		names:    names,
		fallback: fallback,
		logger:   logger,
	}
	d.infer = d.forward
	return d, nil
}

// readNet loads the network, turning a runtime panic into ErrModelLoad.
func readNet(weights, config string) (net gocv.Net, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = xerrors.Errorf("read network: %v: %w", r, ErrModelLoad)
		}
	}()

	net = gocv.ReadNet(weights, config)
	if net.Empty() {
		return net, xerrors.Errorf("network %s is empty: %w", weights, ErrModelLoad)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return gocv.Net{}, xerrors.Errorf("set backend: %v: %w", err, ErrModelLoad)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return gocv.Net{}, xerrors.Errorf("set target: %v: %w", err, ErrModelLoad)
	}
	return net, nil
}

// loadNames reads one class name per line. A missing file yields no names.
func loadNames(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read class names: %w", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\r\n"), "\n")
	names := make([]string, len(lines))
	for i, l := range lines {
		names[i] = strings.TrimSpace(l)
	}
	return names, nil
}

func (d *LearnedDetector) Name() string {
	return "learned"
}

// Detect runs the network. A failed call returns the fallback's detections
// for this frame only.
func (d *LearnedDetector) Detect(frame gocv.Mat) []Detection {
	if frame.Empty() {
		return nil
	}

	d.mu.Lock()
	dets, err := d.safeInfer(frame)
	d.mu.Unlock()

	if err != nil {
		d.logger.Warning("Inference failed, using %s output for this frame: %v", d.fallback.Name(), err)
		return d.fallback.Detect(frame)
	}
	return dets
}

func (d *LearnedDetector) safeInfer(frame gocv.Mat) (dets []Detection, err error) {
	defer func() {
		if r := recover(); r != nil {
			dets, err = nil, xerrors.Errorf("%v: %w", r, ErrInference)
		}
	}()
	return d.infer(frame)
}

// Label resolves a class index; unknown indices become their decimal form.
func (d *LearnedDetector) Label(classID int) string {
	if classID >= 0 && classID < len(d.names) {
		return d.names[classID]
	}
	return strconv.Itoa(classID)
}

func (d *LearnedDetector) forward(frame gocv.Mat) ([]Detection, error) {
	size := image.Pt(d.opts.InputSize, d.opts.InputSize)
	blob := gocv.BlobFromImage(frame, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")

	outputs := d.net.ForwardLayers(outputLayers(d.net))
	defer func() {
		for i := range outputs {
			outputs[i].Close()
		}
	}()
	if len(outputs) == 0 {
		return nil, xerrors.Errorf("network produced no outputs: %w", ErrInference)
	}

	return d.decode(outputs, frame.Cols(), frame.Rows()), nil
}

type candidate struct {
	rect  image.Rectangle
	score float32
}

// decode reads rows of [cx, cy, w, h, objectness, class scores...] in
// normalized coordinates and applies per-class non-max suppression.
func (d *LearnedDetector) decode(outputs []gocv.Mat, width, height int) []Detection {
	byClass := make(map[int][]candidate)
	var order []int

	for _, out := range outputs {
		cols := out.Cols()
		for i := 0; i < out.Rows(); i++ {
			classID, best := -1, float32(0)
			for j := 5; j < cols; j++ {
				if s := out.GetFloatAt(i, j); s > best {
					classID, best = j-5, s
				}
			}
			if classID < 0 || best < d.opts.ConfidenceThresh {
				continue
			}

			cx := out.GetFloatAt(i, 0) * float32(width)
			cy := out.GetFloatAt(i, 1) * float32(height)
			bw := out.GetFloatAt(i, 2) * float32(width)
			bh := out.GetFloatAt(i, 3) * float32(height)
			x0, y0 := cx-bw/2, cy-bh/2
			r := image.Rect(int(x0), int(y0), int(x0+bw), int(y0+bh)).
				Intersect(image.Rect(0, 0, width, height))
			if r.Empty() {
				continue
			}

			if _, seen := byClass[classID]; !seen {
				order = append(order, classID)
			}
			byClass[classID] = append(byClass[classID], candidate{rect: r, score: best})
		}
	}

	var dets []Detection
	for _, classID := range order {
		cands := byClass[classID]
		boxes := make([]image.Rectangle, len(cands))
		scores := make([]float32, len(cands))
		for i, c := range cands {
			boxes[i], scores[i] = c.rect, c.score
		}

		for _, idx := range gocv.NMSBoxes(boxes, scores, d.opts.ConfidenceThresh, d.opts.NMSThresh) {
			dets = append(dets, Detection{
				Label: d.Label(classID),
				Score: Score(float64(scores[idx])),
				Box:   BoxFromRect(boxes[idx]),
			})
		}
	}
	return dets
}

// Close releases the network.
func (d *LearnedDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// outputLayers names the unconnected output layers. Layer ids are 1-based.
func outputLayers(net gocv.Net) []string {
	names := net.GetLayerNames()
	var out []string
	for _, id := range net.GetUnconnectedOutLayers() {
		if id-1 >= 0 && id-1 < len(names) {
			out = append(out, names[id-1])
		}
	}
	return out
}
