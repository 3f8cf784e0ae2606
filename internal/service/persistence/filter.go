package persistence

import (
	"fmt"

	"firewatch/internal/service/ai"

	"gocv.io/x/gocv"
)

const (
	// Capacity is how many recent masks each class keeps.
	Capacity = 5
	// MinPersist is how many of those masks must flag a pixel.
	MinPersist = 3
)

// Floors for persistent regions, by bounding-box area.
const (
	fireMinArea       = 800
	fireAreaFraction  = 0.0005
	smokeMinArea      = 1000
	smokeAreaFraction = 0.0008
)

// AreaFloor is the minimum bounding-box area of a persistent region.
// Labels other than smoke use the fire floor.
func AreaFloor(label string, w, h int) int {
	if label == ai.LabelSmoke {
		return max(smokeMinArea, int(float64(w*h)*smokeAreaFraction))
	}
	return max(fireMinArea, int(float64(w*h)*fireAreaFraction))
}

// Filter keeps a mask history per class and reports regions flagged in at
// least MinPersist of the last Capacity frames. A Filter belongs to one
// session and is not safe for concurrent use.
type Filter struct {
	capacity   int
	minPersist int
	buffers    map[string]*Buffer
}

func NewFilter() *Filter {
	return NewFilterWithWindow(Capacity, MinPersist)
}

// NewFilterWithWindow builds a filter with a custom window; minPersist is
// capped at capacity.
func NewFilterWithWindow(capacity, minPersist int) *Filter {
	capacity = min(max(capacity, 1), 255)
	return &Filter{
		capacity:   capacity,
		minPersist: min(max(minPersist, 1), capacity),
		buffers:    make(map[string]*Buffer),
	}
}

// Update pushes the frame's mask for class and, once enough history exists,
// returns the persistent detections. ok is false while the history is
// shorter than the consensus threshold. A mask of a different size than
// the buffered ones restarts that class's history.
func (f *Filter) Update(class string, m *Mask) (dets []ai.Detection, ok bool, err error) {
	buf := f.buffer(class)
	if buf.Len() > 0 && !buf.Masks()[0].sameSize(m) {
		buf.Reset()
	}
	buf.Push(m)

	if buf.Len() < f.minPersist {
		return nil, false, nil
	}

	consensus := f.consensus(buf)
	dets, err = regions(class, consensus)
	if err != nil {
		return nil, true, err
	}
	return dets, true, nil
}

// Consensus returns the current persistent mask for class, or nil when the
// history is too short.
func (f *Filter) Consensus(class string) *Mask {
	buf, ok := f.buffers[class]
	if !ok || buf.Len() < f.minPersist {
		return nil
	}
	return f.consensus(buf)
}

// Len reports how many masks are buffered for class.
func (f *Filter) Len(class string) int {
	if buf, ok := f.buffers[class]; ok {
		return buf.Len()
	}
	return 0
}

func (f *Filter) buffer(class string) *Buffer {
	buf, ok := f.buffers[class]
	if !ok {
		buf = NewBuffer(f.capacity)
		f.buffers[class] = buf
	}
	return buf
}

func (f *Filter) consensus(buf *Buffer) *Mask {
	first := buf.Masks()[0]
	out := NewMask(first.Width, first.Height)
	threshold := uint8(f.minPersist)
	for i, v := range buf.Sum() {
		if v >= threshold {
			out.Bits[i] = 1
		}
	}
	return out
}

// regions extracts external contours of a persistent mask and keeps those
// whose bounding box reaches the class floor. Scores stay unset.
func regions(class string, m *Mask) ([]ai.Detection, error) {
	if m.Count() == 0 {
		return nil, nil
	}

	mat, err := gocv.NewMatFromBytes(m.Height, m.Width, gocv.MatTypeCV8U, m.Bits)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap persistent mask: %w", err)
	}
	defer mat.Close()

	contours := gocv.FindContours(mat, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	floor := AreaFloor(class, m.Width, m.Height)
	var dets []ai.Detection
	for i := 0; i < contours.Size(); i++ {
		box := ai.BoxFromRect(gocv.BoundingRect(contours.At(i)))
		if box.Area() < floor {
			continue
		}
		dets = append(dets, ai.Detection{Label: class, Box: box})
	}
	return dets, nil
}
