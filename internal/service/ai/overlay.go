package ai

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Colours are RGBA; gocv converts them to the frame's BGR order.
var (
	fireColor     = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	fireTextColor = color.RGBA{R: 200, G: 200, B: 0, A: 0}
	smokeColor    = color.RGBA{R: 50, G: 200, B: 200, A: 0}
	otherColor    = color.RGBA{R: 0, G: 255, B: 0, A: 0}
)

const (
	rawThickness   = 1
	heavyThickness = 2
)

// OverlayRenderer draws detections on a copy of a frame.
type OverlayRenderer struct {
	FontScale float64
}

func NewOverlayRenderer() *OverlayRenderer {
	return &OverlayRenderer{FontScale: 0.8}
}

// Render returns an annotated clone of frame: raw detections as thin
// outlines, persistent ones as thick outlines with their label. The caller
// owns the returned Mat.
func (o *OverlayRenderer) Render(frame gocv.Mat, raw, persistent []Detection) gocv.Mat {
	out := frame.Clone()

	for _, d := range raw {
		gocv.Rectangle(&out, d.Box.Rect(), boxColor(d.Label), rawThickness)
	}
	for _, d := range persistent {
		gocv.Rectangle(&out, d.Box.Rect(), boxColor(d.Label), heavyThickness)
		text := d.Label
		if d.Score != nil {
			text = fmt.Sprintf("%s %.2f", d.Label, *d.Score)
		}
		gocv.PutText(&out, text, image.Pt(d.Box.X, d.Box.Y-10), gocv.FontHersheySimplex, o.FontScale, textColor(d.Label), heavyThickness)
	}
	return out
}

// RenderJPEG renders and encodes the annotated frame.
func (o *OverlayRenderer) RenderJPEG(frame gocv.Mat, raw, persistent []Detection) ([]byte, error) {
	annotated := o.Render(frame, raw, persistent)
	defer annotated.Close()
	return EncodeJPEG(annotated)
}

// EncodeJPEG copies the encoded bytes out of gocv's native buffer.
func EncodeJPEG(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	img := make([]byte, len(buf.GetBytes()))
	copy(img, buf.GetBytes())
	return img, nil
}

// DecodeImage decodes encoded image bytes into a BGR frame.
func DecodeImage(data []byte) (gocv.Mat, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return mat, fmt.Errorf("failed to decode image: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("decoded image is empty")
	}
	return mat, nil
}

func boxColor(label string) color.RGBA {
	switch label {
	case LabelFire:
		return fireColor
	case LabelSmoke:
		return smokeColor
	}
	return otherColor
}

func textColor(label string) color.RGBA {
	if label == LabelFire {
		return fireTextColor
	}
	return boxColor(label)
}
