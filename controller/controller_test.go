package controller

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/yolodrop/common"
	"github.com/nvr-ai/yolodrop/images"
	"github.com/nvr-ai/yolodrop/profiler"
	"github.com/nvr-ai/yolodrop/results"
)

// MockDetector provides controllable detection results for testing
type MockDetector struct {
	ratio       float64
	detections  []common.Detection
	shouldError bool
	onDetect    func()

	mu   sync.Mutex
	seen []image.Point
}

func (m *MockDetector) Detect(ctx context.Context, img *images.Buffer, _ float32) ([]common.Detection, error) {
	m.mu.Lock()
	m.seen = append(m.seen, image.Pt(img.Width(), img.Height()))
	m.mu.Unlock()

	if m.onDetect != nil {
		m.onDetect()
	}
	if m.shouldError {
		return nil, errors.New("mock detection error")
	}
	return m.detections, ctx.Err()
}

func (m *MockDetector) ClassNames() []string { return []string{"person", "dog"} }
func (m *MockDetector) AspectRatio() float64 { return m.ratio }
func (m *MockDetector) Close() error         { return nil }

func (m *MockDetector) sizes() []image.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]image.Point(nil), m.seen...)
}

// MockSaver records saved results for testing
type MockSaver struct {
	shouldError bool

	mu      sync.Mutex
	sources []string
}

func (m *MockSaver) Save(buf *images.Buffer, sourcePath string, _ []common.Detection) (results.Saved, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shouldError {
		return results.Saved{}, errors.New("mock save error")
	}
	if buf.Released() {
		return results.Saved{}, errors.New("saved a released buffer")
	}
	m.sources = append(m.sources, sourcePath)
	return results.Saved{ImagePath: sourcePath + ".out"}, nil
}

func (m *MockSaver) saved() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sources...)
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newTestController(det *MockDetector, saver Saver) (*Controller, *bytes.Buffer) {
	var out bytes.Buffer
	return New(det, saver, log.New(&out, "", 0)), &out
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wide.png")
	writePNG(t, path, 100, 50)

	det := &MockDetector{
		ratio: 1,
		detections: []common.Detection{
			{Label: "dog", ClassID: 1, Confidence: 0.9, X: 10, Y: 10, Width: 20, Height: 20},
		},
	}
	saver := &MockSaver{}
	c, out := newTestController(det, saver)

	report, err := c.Process(context.Background(), []string{path})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Files, 1)
	assert.Equal(t, det.detections, report.Files[0].Detections)
	assert.Equal(t, path+".out", report.Files[0].Saved.ImagePath)

	assert.Equal(t, []image.Point{{X: 100, Y: 100}}, det.sizes(), "letterboxed to the detector ratio")
	assert.Equal(t, []string{path}, saver.saved())

	logged := out.String()
	assert.Contains(t, logged, path+"\n")
	assert.Contains(t, logged, "1 object(s), ")
	assert.Contains(t, logged, "dog:(10,10,20,20)0.9\n")
}

func TestProcessProfilesStages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writePNG(t, path, 8, 8)

	c, _ := newTestController(&MockDetector{}, &MockSaver{})
	c.Profiler = profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})

	_, err := c.Process(context.Background(), []string{path, path})
	require.NoError(t, err)

	var names []string
	for _, op := range c.Profiler.Operations() {
		names = append(names, op.Name)
		assert.Equal(t, int64(2), op.Count, op.Name)
	}
	assert.Equal(t, []string{"load", "pad", "detect", "draw", "save"}, names)
}

func TestProcessAspectRatioOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tall.png")
	writePNG(t, path, 30, 40)

	tests := []struct {
		name  string
		ratio float64
		want  image.Point
	}{
		{"detector ratio", 0, image.Pt(40, 40)},
		{"override", 4.0 / 3.0, image.Pt(53, 40)},
		{"disabled", -1, image.Pt(30, 40)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det := &MockDetector{ratio: 1}
			c, _ := newTestController(det, nil)
			c.AspectRatio = tt.ratio

			_, err := c.Process(context.Background(), []string{path})
			require.NoError(t, err)
			assert.Equal(t, []image.Point{tt.want}, det.sizes())
		})
	}
}

func TestProcessContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.jpg")
	require.NoError(t, os.WriteFile(garbage, []byte("not an image"), 0o644))
	good := filepath.Join(dir, "good.png")
	writePNG(t, good, 8, 8)
	missing := filepath.Join(dir, "missing.png")

	det := &MockDetector{}
	saver := &MockSaver{}
	c, out := newTestController(det, saver)

	report, err := c.Process(context.Background(), []string{garbage, good, missing})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, []string{good}, saver.saved())

	var decodeErr *images.DecodeError
	require.ErrorAs(t, report.Files[0].Err, &decodeErr)
	assert.Equal(t, garbage, decodeErr.Filename)
	require.ErrorAs(t, report.Files[2].Err, &decodeErr)
	assert.ErrorIs(t, report.Files[2].Err, os.ErrNotExist)

	assert.Contains(t, out.String(), "1 file(s), 0 object(s)")
}

func TestProcessCanvasTooLarge(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.png")
	writePNG(t, first, 10, 10)
	wide := filepath.Join(dir, "wide.png")
	writePNG(t, wide, 40, 20)
	last := filepath.Join(dir, "last.png")
	writePNG(t, last, 20, 10)

	det := &MockDetector{ratio: 1}
	saver := &MockSaver{}
	c, out := newTestController(det, saver)
	c.MaxCanvasPixels = 400

	report, err := c.Process(context.Background(), []string{first, wide, last})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, []string{first, last}, saver.saved())
	assert.Equal(t, []image.Point{image.Pt(10, 10), image.Pt(20, 20)}, det.sizes(), "the oversized file never reaches the detector")

	var resErr *images.ResourceError
	require.ErrorAs(t, report.Files[1].Err, &resErr)
	assert.Equal(t, 40, resErr.Width)
	assert.Equal(t, 40, resErr.Height)
	assert.Contains(t, out.String(), "allocate 40x40 canvas")
}

func TestProcessRatioOverflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	writePNG(t, path, 8, 8)

	det := &MockDetector{}
	c, _ := newTestController(det, &MockSaver{})
	c.AspectRatio = 1e300

	report, err := c.Process(context.Background(), []string{path})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	var resErr *images.ResourceError
	assert.ErrorAs(t, report.Files[0].Err, &resErr)
	assert.Empty(t, det.sizes())
}

func TestProcessStageErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writePNG(t, path, 8, 8)

	tests := []struct {
		name    string
		det     *MockDetector
		saver   *MockSaver
		wantLog string
	}{
		{"detector", &MockDetector{shouldError: true}, &MockSaver{}, "mock detection error"},
		{"saver", &MockDetector{}, &MockSaver{shouldError: true}, "mock save error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, out := newTestController(tt.det, tt.saver)

			report, err := c.Process(context.Background(), []string{path, path})
			require.NoError(t, err)
			assert.Equal(t, 0, report.Processed)
			assert.Equal(t, 2, report.Failed)
			assert.Contains(t, out.String(), tt.wantLog)
		})
	}
}

func TestProcessCancelled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writePNG(t, path, 8, 8)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	det := &MockDetector{}
	c, _ := newTestController(det, nil)
	report, err := c.Process(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Files)
	assert.Empty(t, det.sizes())
}

func TestProcessCancelledMidBatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writePNG(t, path, 8, 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	det := &MockDetector{onDetect: cancel}
	c, _ := newTestController(det, &MockSaver{})
	report, err := c.Process(ctx, []string{path, path, path})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, det.sizes(), 1)
	require.Len(t, report.Files, 1)
	assert.ErrorIs(t, report.Files[0].Err, context.Canceled)
}

func TestSummarize(t *testing.T) {
	files := []FileResult{
		{Detections: []common.Detection{
			{Label: "dog", Confidence: 0.9, Width: 10, Height: 10},
			{Label: "person", Confidence: 0.5, Width: 20, Height: 10},
		}},
		{Err: errors.New("failed"), Detections: []common.Detection{{Label: "cat", Confidence: 1}}},
		{Detections: []common.Detection{{Label: "dog", Confidence: 0.7, Width: 30, Height: 10}}},
	}

	s := Summarize(files)
	assert.Equal(t, 2, s.Files)
	assert.Equal(t, 3, s.TotalObjects)
	assert.Equal(t, map[string]int{"dog": 2, "person": 1}, s.ByLabel)
	assert.InDelta(t, 200, s.AverageObjectSize, 1e-9)
	assert.InDelta(t, 0.7, s.ConfidenceDistribution.Mean, 1e-6)
	assert.InDelta(t, 0.7, s.ConfidenceDistribution.Median, 1e-6)
	assert.InDelta(t, 0.5, s.ConfidenceDistribution.Min, 1e-6)
	assert.InDelta(t, 0.9, s.ConfidenceDistribution.Max, 1e-6)
	assert.Contains(t, s.String(), "2 file(s), 3 object(s) [dog=2 person=1]")

	empty := Summarize(nil)
	assert.Equal(t, 0, empty.TotalObjects)
	assert.Equal(t, ConfidenceStats{}, empty.ConfidenceDistribution)
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	det := &MockDetector{}
	saver := &MockSaver{}
	c, _ := newTestController(det, saver)

	w, err := NewWatcher(dir, c)
	require.NoError(t, err)
	defer w.Close()
	w.Settle = 50 * time.Millisecond

	var mu sync.Mutex
	var processed []FileResult
	w.OnResult = func(r FileResult) {
		mu.Lock()
		defer mu.Unlock()
		processed = append(processed, r)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	tmp := filepath.Join(t.TempDir(), "staging.png")
	writePNG(t, tmp, 16, 9)
	dropped := filepath.Join(dir, "dropped.png")
	require.NoError(t, os.Rename(tmp, dropped))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(processed) == 1
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.Equal(t, dropped, processed[0].Path)
	assert.NoError(t, processed[0].Err)
	mu.Unlock()
	assert.Equal(t, []string{dropped}, saver.saved())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcherSkipsOwnResults(t *testing.T) {
	dir := t.TempDir()
	det := &MockDetector{}
	c, _ := newTestController(det, results.NewWriter(dir, 0))

	w, err := NewWatcher(dir, c)
	require.NoError(t, err)
	defer w.Close()
	w.Settle = 20 * time.Millisecond

	var mu sync.Mutex
	var processed []FileResult
	w.OnResult = func(r FileResult) {
		mu.Lock()
		defer mu.Unlock()
		processed = append(processed, r)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	tmp := filepath.Join(t.TempDir(), "staging.png")
	writePNG(t, tmp, 16, 9)
	dropped := filepath.Join(dir, "one.png")
	require.NoError(t, os.Rename(tmp, dropped))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(processed) == 1
	}, 5*time.Second, 10*time.Millisecond)

	// Many settle periods pass; the saved image must not come back in.
	time.Sleep(500 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, processed, 1)
	assert.Equal(t, dropped, processed[0].Path)
	require.NoError(t, processed[0].Err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "the dropped file plus one image and one csv")
	assert.Len(t, det.sizes(), 1)
}

func TestSettled(t *testing.T) {
	now := time.Now()
	pending := map[string]time.Time{
		"b.png": now.Add(-time.Second),
		"a.png": now.Add(-time.Second),
		"c.png": now,
	}
	assert.Equal(t, []string{"a.png", "b.png"}, settled(pending, now, 500*time.Millisecond))
}
