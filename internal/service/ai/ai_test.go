package ai

import (
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"testing"

	"firewatch/internal/config"
	"firewatch/internal/logger"

	"gocv.io/x/gocv"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	t.Cleanup(func() { l.Close() })
	return l
}

// grayFrame returns a w x h neutral gray BGR frame.
func grayFrame(w, h int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 128, 128, 0), h, w, gocv.MatTypeCV8UC3)
}

// fillRect paints a solid BGR(0,0,255) rectangle.
func fillRect(m *gocv.Mat, r image.Rectangle) {
	gocv.Rectangle(m, r, color.RGBA{R: 255, A: 0}, -1)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func byLabel(dets []Detection, label string) []Detection {
	var out []Detection
	for _, d := range dets {
		if d.Label == label {
			out = append(out, d)
		}
	}
	return out
}

func TestHeuristicRedRectangleIsOneFire(t *testing.T) {
	frame := grayFrame(320, 240)
	defer frame.Close()
	want := image.Rect(100, 80, 160, 120)
	fillRect(&frame, want)

	fires := byLabel(NewHeuristicDetector().Detect(frame), LabelFire)
	if len(fires) != 1 {
		t.Fatalf("got %d fire detections, want 1: %v", len(fires), fires)
	}

	got := fires[0].Box
	const tol = 3
	if abs(got.X-want.Min.X) > tol || abs(got.Y-want.Min.Y) > tol ||
		abs(got.W-want.Dx()) > tol || abs(got.H-want.Dy()) > tol {
		t.Errorf("box = %+v, want %v within %dpx", got, want, tol)
	}
	if fires[0].Score == nil {
		t.Fatal("heuristic detections must carry a score")
	}
	// area term + brightness term exceed the cap for a bright, large region
	if *fires[0].Score != FireScoreCap {
		t.Errorf("score = %v, want cap %v", *fires[0].Score, FireScoreCap)
	}
}

func TestHeuristicScoresWithinCaps(t *testing.T) {
	frame := grayFrame(320, 240)
	defer frame.Close()
	fillRect(&frame, image.Rect(10, 10, 50, 40))
	fillRect(&frame, image.Rect(200, 150, 300, 220))

	caps := map[string]float64{LabelFire: FireScoreCap, LabelSmoke: SmokeScoreCap}
	for _, d := range NewHeuristicDetector().Detect(frame) {
		limit, ok := caps[d.Label]
		if !ok {
			t.Fatalf("unexpected label %q", d.Label)
		}
		if d.Score == nil || *d.Score < 0 || *d.Score > limit {
			t.Errorf("%s score %v outside [0, %v]", d.Label, d.Score, limit)
		}
	}

	smoke := byLabel(NewHeuristicDetector().Detect(frame), LabelSmoke)
	if len(smoke) == 0 {
		t.Fatal("gray background should read as smoke")
	}
	if *smoke[0].Score != SmokeScoreCap {
		t.Errorf("frame-sized smoke score = %v, want cap %v", *smoke[0].Score, SmokeScoreCap)
	}
}

func TestHeuristicBoxesRespectAreaFloor(t *testing.T) {
	tests := []struct {
		name string
		rect image.Rectangle
		fire bool
	}{
		{"tiny speck dropped", image.Rect(50, 50, 58, 58), false},
		{"just under floor dropped", image.Rect(50, 50, 65, 70), false},
		{"large region kept", image.Rect(40, 40, 120, 100), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := grayFrame(640, 480)
			defer frame.Close()
			fillRect(&frame, tt.rect)

			dets := NewHeuristicDetector().Detect(frame)
			for _, d := range dets {
				if floor := AreaFloor(d.Label, 640, 480); d.Box.Area() < floor {
					t.Errorf("%s box area %d below floor %d", d.Label, d.Box.Area(), floor)
				}
			}
			if got := len(byLabel(dets, LabelFire)) > 0; got != tt.fire {
				t.Errorf("fire found = %v, want %v", got, tt.fire)
			}
		})
	}
}

func TestHeuristicIsDeterministic(t *testing.T) {
	frame := grayFrame(320, 240)
	defer frame.Close()
	fillRect(&frame, image.Rect(20, 20, 90, 80))

	d := NewHeuristicDetector()
	first, _ := json.Marshal(d.Detect(frame))
	for i := 0; i < 3; i++ {
		again, _ := json.Marshal(d.Detect(frame))
		if string(again) != string(first) {
			t.Fatalf("run %d differs:\n%s\n%s", i, first, again)
		}
	}
}

func TestAreaFloor(t *testing.T) {
	tests := []struct {
		label string
		w, h  int
		want  int
	}{
		{LabelFire, 320, 240, 400},
		{LabelFire, 1920, 1080, 1036},
		{LabelSmoke, 320, 240, 800},
		{LabelSmoke, 1920, 1080, 2073},
		{"person", 320, 240, 0},
	}
	for _, tt := range tests {
		if got := AreaFloor(tt.label, tt.w, tt.h); got != tt.want {
			t.Errorf("AreaFloor(%s, %d, %d) = %d, want %d", tt.label, tt.w, tt.h, got, tt.want)
		}
	}
}

func TestClampAppliesAfterSum(t *testing.T) {
	if got := clampScore(0.9+0.2, FireScoreCap); got != FireScoreCap {
		t.Errorf("clampScore = %v, want %v", got, FireScoreCap)
	}
	if got := clampScore(-0.1, SmokeScoreCap); got != 0 {
		t.Errorf("clampScore = %v, want 0", got)
	}
	if got := *Score(0.456); got != 0.46 {
		t.Errorf("Score rounding = %v, want 0.46", got)
	}
}

func TestLearnedFallsBackPerCall(t *testing.T) {
	frame := grayFrame(320, 240)
	defer frame.Close()
	fillRect(&frame, image.Rect(100, 80, 160, 120))

	heuristic := NewHeuristicDetector()
	want, _ := json.Marshal(heuristic.Detect(frame))

	calls := 0
	d := &LearnedDetector{
		fallback: heuristic,
		logger:   testLogger(t),
	}
	d.infer = func(gocv.Mat) ([]Detection, error) {
		calls++
		switch calls {
		case 1:
			return nil, ErrInference
		case 2:
			panic("runtime blew up")
		}
		return []Detection{{Label: "fire", Score: Score(0.8), Box: Box{1, 2, 30, 40}}}, nil
	}

	for i := 0; i < 2; i++ {
		got, _ := json.Marshal(d.Detect(frame))
		if string(got) != string(want) {
			t.Errorf("call %d: got %s, want heuristic output %s", i+1, got, want)
		}
	}

	got := d.Detect(frame)
	if len(got) != 1 || got[0].Box != (Box{1, 2, 30, 40}) {
		t.Errorf("third call should use the model again, got %v", got)
	}
}

func TestLearnedLabelFallsBackToIndex(t *testing.T) {
	d := &LearnedDetector{names: []string{"fire", "smoke"}}

	tests := []struct {
		id   int
		want string
	}{
		{0, "fire"},
		{1, "smoke"},
		{2, "2"},
		{17, "17"},
	}
	for _, tt := range tests {
		if got := d.Label(tt.id); got != tt.want {
			t.Errorf("Label(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestLearnedDecode(t *testing.T) {
	const classes = 8
	// rows are cx, cy, w, h (fractions of a 640x480 frame), class id, score
	rows := []struct {
		cx, cy, w, h float32
		class        int
		score        float32
	}{
		{0.5, 0.5, 0.25, 0.25, 0, 0.3},              // below threshold
		{0.5, 0.5, 0.25, 0.25, 0, 0.9},              // kept
		{0.515625, 0.5, 0.25, 0.25, 0, 0.8},         // overlaps the row above
		{0.25, 0.25, 0.125, 0.125, 1, 0.876},        // rounds to 0.88
		{0.75, 0.75, 0.125, 0.125, 7, 0.7},          // no name for class 7
		{0.046875, 0.03125, 0.15625, 0.125, 0, 0.6}, // runs off the top-left corner
	}

	out := gocv.NewMatWithSize(len(rows), 5+classes, gocv.MatTypeCV32F)
	defer out.Close()
	for i, r := range rows {
		out.SetFloatAt(i, 0, r.cx)
		out.SetFloatAt(i, 1, r.cy)
		out.SetFloatAt(i, 2, r.w)
		out.SetFloatAt(i, 3, r.h)
		out.SetFloatAt(i, 4, 1)
		for c := 0; c < classes; c++ {
			out.SetFloatAt(i, 5+c, 0)
		}
		out.SetFloatAt(i, 5+r.class, r.score)
	}

	d := &LearnedDetector{
		opts:  ModelOptions{ConfidenceThresh: 0.45, NMSThresh: 0.4},
		names: []string{"fire", "smoke"},
	}
	got := d.decode([]gocv.Mat{out}, 640, 480)

	want := []struct {
		label string
		score float64
		box   Box
	}{
		{"fire", 0.9, Box{240, 180, 160, 120}},
		{"fire", 0.6, Box{0, 0, 80, 45}},
		{"smoke", 0.88, Box{120, 90, 80, 60}},
		{"7", 0.7, Box{440, 330, 80, 60}},
	}
	if len(got) != len(want) {
		t.Fatalf("decode returned %d detections, want %d: %v", len(got), len(want), got)
	}
	for i, w := range want {
		g := got[i]
		if g.Label != w.label || g.Score == nil || *g.Score != w.score || g.Box != w.box {
			t.Errorf("detection %d = %v, want %s %.2f %v", i, g, w.label, w.score, w.box)
		}
	}
}

func TestInitWithoutModelUsesHeuristicForever(t *testing.T) {
	opts := DefaultModelOptions()
	opts.WeightsPath = "does/not/exist.weights"
	opts.ConfigPath = "does/not/exist.cfg"

	res := Init(opts, testLogger(t))
	if res.Learned {
		t.Fatal("Learned = true with missing model files")
	}
	if !errors.Is(res.Err, ErrModelLoad) {
		t.Errorf("Err = %v, want ErrModelLoad", res.Err)
	}

	frame := grayFrame(64, 48)
	defer frame.Close()
	for i := 0; i < 3; i++ {
		res.Detector.Detect(frame)
		if res.Detector.Name() != "heuristic" {
			t.Fatalf("call %d used %s detector", i, res.Detector.Name())
		}
	}
}

func TestDetectionJSON(t *testing.T) {
	dets := []Detection{
		{Label: LabelFire, Score: Score(0.5), Box: Box{1, 2, 3, 4}},
		{Label: LabelSmoke, Box: Box{5, 6, 7, 8}},
	}
	data, err := json.Marshal(dets)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `[{"label":"fire","score":0.5,"box":[1,2,3,4]},{"label":"smoke","score":null,"box":[5,6,7,8]}]`
	if string(data) != want {
		t.Errorf("json = %s\nwant %s", data, want)
	}

	var back []Detection
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back[1].Score != nil || back[1].Box != dets[1].Box {
		t.Errorf("round trip lost data: %+v", back[1])
	}
}

func TestOverlayDoesNotTouchSource(t *testing.T) {
	frame := grayFrame(160, 120)
	defer frame.Close()
	before := frame.Clone()
	defer before.Close()

	r := NewOverlayRenderer()
	raw := []Detection{{Label: LabelFire, Score: Score(0.9), Box: Box{10, 10, 40, 30}}}
	persistent := []Detection{{Label: LabelSmoke, Box: Box{60, 40, 50, 50}}}

	jpg, err := r.RenderJPEG(frame, raw, persistent)
	if err != nil {
		t.Fatalf("RenderJPEG: %v", err)
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(frame, before, &diff)
	flat := diff.Reshape(1, 0)
	defer flat.Close()
	if n := gocv.CountNonZero(flat); n != 0 {
		t.Errorf("source frame changed in %d places", n)
	}

	decoded, err := DecodeImage(jpg)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	defer decoded.Close()
	if decoded.Cols() != 160 || decoded.Rows() != 120 {
		t.Errorf("decoded size = %dx%d, want 160x120", decoded.Cols(), decoded.Rows())
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	if _, err := DecodeImage([]byte("not an image")); err == nil {
		t.Error("expected error for undecodable bytes")
	}
}
