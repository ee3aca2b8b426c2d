package results

import (
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/yolodrop/common"
	"github.com/nvr-ai/yolodrop/images"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local)
}

func TestWriterSave(t *testing.T) {
	tests := []struct {
		name      string
		source    string
		wantImage string
		decode    func(f *os.File) (image.Image, error)
	}{
		{"jpeg source", "photo.JPG", "20240309_140507_000.jpg", func(f *os.File) (image.Image, error) { return jpeg.Decode(f) }},
		{"jfif source", "scan.jfif", "20240309_140507_000.jpg", func(f *os.File) (image.Image, error) { return jpeg.Decode(f) }},
		{"png source", "shot.png", "20240309_140507_000.png", func(f *os.File) (image.Image, error) { return png.Decode(f) }},
		{"webp source", "clip.webp", "20240309_140507_000.png", func(f *os.File) (image.Image, error) { return png.Decode(f) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "result")
			w := NewWriter(dir, 0)
			w.Now = fixedClock

			saved, err := w.Save(images.NewBuffer(32, 24), tt.source, nil)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tt.wantImage), saved.ImagePath)
			assert.Equal(t, filepath.Join(dir, "20240309_140507_000.csv"), saved.CSVPath)

			f, err := os.Open(saved.ImagePath)
			require.NoError(t, err)
			defer f.Close()
			img, err := tt.decode(f)
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 32, 24), img.Bounds())
		})
	}
}

func TestWriterCounter(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, 80)
	w.Now = fixedClock

	var names []string
	for i := 0; i < 3; i++ {
		saved, err := w.Save(images.NewBuffer(4, 4), "a.png", nil)
		require.NoError(t, err)
		names = append(names, filepath.Base(saved.CSVPath))
	}

	assert.Equal(t, []string{
		"20240309_140507_000.csv",
		"20240309_140507_001.csv",
		"20240309_140507_002.csv",
	}, names)
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	detections := []common.Detection{
		{Label: "dog", X: 10, Y: 20, Width: 30, Height: 40, Confidence: 0.75},
		{Label: "traffic light", X: 0, Y: 5, Width: 6, Height: 7, Confidence: 0.5},
		{Label: "a,b", X: 1, Y: 2, Width: 3, Height: 4, Confidence: 1},
	}

	require.NoError(t, WriteCSV(path, detections))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\ufeff"+
		"dog,10,20,30,40,0.75\n"+
		"traffic light,0,5,6,7,0.5\n"+
		"\"a,b\",1,2,3,4,1\n", string(data))
}

func TestWriteCSVEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, WriteCSV(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\ufeff", string(data))
}

func TestWriterSaveErrors(t *testing.T) {
	buf := images.NewBuffer(2, 2)
	buf.Release()
	_, err := NewWriter(t.TempDir(), 0).Save(buf, "a.jpg", nil)
	assert.Error(t, err)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	_, err = NewWriter(filepath.Join(blocker, "sub"), 0).Save(images.NewBuffer(2, 2), "a.jpg", nil)
	assert.Error(t, err)
}
