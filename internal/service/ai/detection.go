package ai

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
)

// Labels of the tracked classes.
const (
	LabelFire  = "fire"
	LabelSmoke = "smoke"
)

// Score caps per class.
const (
	FireScoreCap  = 0.99
	SmokeScoreCap = 0.95
)

// Box is an axis-aligned pixel rectangle. It travels as [x, y, w, h].
type Box struct {
	X, Y, W, H int
}

func BoxFromRect(r image.Rectangle) Box {
	return Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

func (b Box) Area() int {
	return b.W * b.H
}

func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.X, b.Y, b.W, b.H})
}

func (b *Box) UnmarshalJSON(data []byte) error {
	var v [4]int
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("box must be [x,y,w,h]: %w", err)
	}
	*b = Box{X: v[0], Y: v[1], W: v[2], H: v[3]}
	return nil
}

// Detection is one candidate region. Score is nil for persistence detections.
type Detection struct {
	Label string   `json:"label"`
	Score *float64 `json:"score"`
	Box   Box      `json:"box"`
}

func (d Detection) String() string {
	if d.Score == nil {
		return fmt.Sprintf("%s box=[%d,%d,%d,%d]", d.Label, d.Box.X, d.Box.Y, d.Box.W, d.Box.H)
	}
	return fmt.Sprintf("%s (%.2f) box=[%d,%d,%d,%d]", d.Label, *d.Score, d.Box.X, d.Box.Y, d.Box.W, d.Box.H)
}

// IsAlertClass reports whether the label is fire or smoke.
func IsAlertClass(label string) bool {
	return label == LabelFire || label == LabelSmoke
}

// Score returns a pointer to s rounded to two decimals.
func Score(s float64) *float64 {
	r := math.Round(s*100) / 100
	return &r
}

// clampScore bounds a weighted score to [0, limit]. It must run after the sum.
func clampScore(s, limit float64) float64 {
	return math.Max(0, math.Min(limit, s))
}
