package ai

import (
	"image"

	"gocv.io/x/gocv"
)

// Area floors for a single-frame region: max(min, frame area * fraction).
const (
	fireMinArea       = 400
	fireAreaFraction  = 0.0005
	smokeMinArea      = 800
	smokeAreaFraction = 0.001
)

// Hue/saturation/value bounds on OpenCV's 8-bit scale (hue 0..179).
var (
	fireWarmLower  = gocv.NewScalar(0, 100, 150, 0)
	fireWarmUpper  = gocv.NewScalar(35, 255, 255, 0)
	fireRedLower   = gocv.NewScalar(170, 80, 120, 0)
	fireRedUpper   = gocv.NewScalar(179, 255, 255, 0)
	smokeLower     = gocv.NewScalar(0, 0, 80, 0)
	smokeUpper     = gocv.NewScalar(179, 90, 230, 0)
	vividSatLower  = gocv.NewScalar(0, 100, 0, 0)
	vividSatUpper  = gocv.NewScalar(179, 255, 255, 0)
	morphKernelDim = image.Pt(5, 5)
)

// HeuristicDetector segments fire and smoke by colour. It holds no state and
// returns the same detections for the same frame.
type HeuristicDetector struct{}

func NewHeuristicDetector() *HeuristicDetector {
	return &HeuristicDetector{}
}

func (h *HeuristicDetector) Name() string {
	return "heuristic"
}

// AreaFloor is the minimum contour area kept for a label on a w x h frame.
func AreaFloor(label string, w, h int) int {
	switch label {
	case LabelFire:
		return max(fireMinArea, int(float64(w*h)*fireAreaFraction))
	case LabelSmoke:
		return max(smokeMinArea, int(float64(w*h)*smokeAreaFraction))
	}
	return 0
}

func (h *HeuristicDetector) Detect(frame gocv.Mat) []Detection {
	if frame.Empty() {
		return nil
	}
	w, hgt := frame.Cols(), frame.Rows()

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	fm := fireMask(hsv)
	defer fm.Close()
	sm := smokeMask(hsv)
	defer sm.Close()

	var out []Detection
	for _, r := range regions(fm, AreaFloor(LabelFire, w, hgt)) {
		mean := meanIn(hsv, r.box)
		s := 0.3 + (r.area/float64(w*hgt))*10 + (mean.Val3/255.0)*0.5
		out = append(out, Detection{Label: LabelFire, Score: Score(clampScore(s, FireScoreCap)), Box: r.box})
	}
	for _, r := range regions(sm, AreaFloor(LabelSmoke, w, hgt)) {
		mean := meanIn(hsv, r.box)
		s := 0.2 + (r.area/float64(w*hgt))*8 + (1-mean.Val2/255.0)*0.4
		out = append(out, Detection{Label: LabelSmoke, Score: Score(clampScore(s, SmokeScoreCap)), Box: r.box})
	}
	return out
}

// fireMask is the union of the warm range and the wrap-around red range.
func fireMask(hsv gocv.Mat) gocv.Mat {
	warm := gocv.NewMat()
	defer warm.Close()
	red := gocv.NewMat()
	defer red.Close()

	gocv.InRangeWithScalar(hsv, fireWarmLower, fireWarmUpper, &warm)
	gocv.InRangeWithScalar(hsv, fireRedLower, fireRedUpper, &red)

	mask := gocv.NewMat()
	gocv.BitwiseOr(warm, red, &mask)
	return mask
}

// smokeMask keeps grey pixels and drops anything with saturation >= 100.
func smokeMask(hsv gocv.Mat) gocv.Mat {
	grey := gocv.NewMat()
	defer grey.Close()
	vivid := gocv.NewMat()
	defer vivid.Close()
	notVivid := gocv.NewMat()
	defer notVivid.Close()

	gocv.InRangeWithScalar(hsv, smokeLower, smokeUpper, &grey)
	gocv.InRangeWithScalar(hsv, vividSatLower, vividSatUpper, &vivid)
	gocv.BitwiseNot(vivid, &notVivid)

	mask := gocv.NewMat()
	gocv.BitwiseAnd(grey, notVivid, &mask)
	return mask
}

type region struct {
	box  Box
	area float64
}

// regions cleans a binary mask with one opening and two closings, then
// returns the external contours whose area reaches minArea.
func regions(mask gocv.Mat, minArea int) []region {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, morphKernelDim)
	defer kernel.Close()

	clean := gocv.NewMat()
	defer clean.Close()
	gocv.MorphologyEx(mask, &clean, gocv.MorphOpen, kernel)
	// closing with two iterations: dilate twice, then erode twice
	gocv.Dilate(clean, &clean, kernel)
	gocv.Dilate(clean, &clean, kernel)
	gocv.Erode(clean, &clean, kernel)
	gocv.Erode(clean, &clean, kernel)

	contours := gocv.FindContours(clean, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var out []region
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		area := gocv.ContourArea(c)
		if area < float64(minArea) {
			continue
		}
		out = append(out, region{box: BoxFromRect(gocv.BoundingRect(c)), area: area})
	}
	return out
}

// meanIn averages the HSV channels inside the box.
func meanIn(hsv gocv.Mat, b Box) gocv.Scalar {
	roi := hsv.Region(b.Rect().Intersect(image.Rect(0, 0, hsv.Cols(), hsv.Rows())))
	defer roi.Close()
	return roi.Mean()
}
