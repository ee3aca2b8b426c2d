// Package results - Saves annotated images and their detection tables.
package results

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/yolodrop/common"
	"github.com/nvr-ai/yolodrop/images"
)

// TimestampLayout is the time part of every result basename.
const TimestampLayout = "20060102_150405"

// utf8BOM marks the CSV as UTF-8 for spreadsheet applications.
const utf8BOM = "\ufeff"

// Saved names the files written for one image.
type Saved struct {
	// ImagePath is the annotated image.
	ImagePath string `json:"image_path" yaml:"image_path"`
	// CSVPath is the detection table.
	CSVPath string `json:"csv_path" yaml:"csv_path"`
}

// Writer saves results into a directory under sequential, timestamped names.
type Writer struct {
	// Dir is created on first use when missing.
	Dir string
	// JPEGQuality is used for JPEG output; <= 0 selects images.DefaultJPEGQuality.
	JPEGQuality int
	// Now returns the timestamp for the basename; nil uses time.Now.
	Now func() time.Time

	mu    sync.Mutex
	count int
}

// NewWriter creates a Writer for dir.
func NewWriter(dir string, jpegQuality int) *Writer {
	return &Writer{Dir: dir, JPEGQuality: jpegQuality}
}

// Save writes buf and its detections as <dir>/<yyyyMMdd_HHmmss>_<NNN>.{jpg|png,csv}.
// The image is saved as JPEG when sourcePath has a JPEG-family extension and as PNG
// otherwise.
//
// Arguments:
//   - buf: The annotated image.
//   - sourcePath: The file the image was loaded from; only its extension is used.
//   - detections: One CSV line each: label,x,y,width,height,confidence.
//
// Returns:
//   - Saved: The written paths.
//   - error: An error if the directory or a file cannot be written.
//
// @example
//
//	w := results.NewWriter("result", 0)
//	saved, err := w.Save(padded, "photo.jpg", detections)
func (w *Writer) Save(buf *images.Buffer, sourcePath string, detections []common.Detection) (Saved, error) {
	if buf.Released() {
		return Saved{}, errors.New("image buffer has been released")
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return Saved{}, errors.Wrapf(err, "create result directory %s", w.Dir)
	}

	base := filepath.Join(w.Dir, w.nextBasename())
	format := images.OutputFormatFor(sourcePath)
	saved := Saved{
		ImagePath: base + format.Extension(),
		CSVPath:   base + ".csv",
	}

	if err := w.writeImage(saved.ImagePath, buf, format); err != nil {
		return Saved{}, err
	}
	if err := WriteCSV(saved.CSVPath, detections); err != nil {
		return Saved{}, err
	}
	return saved, nil
}

func (w *Writer) nextBasename() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	name := fmt.Sprintf("%s_%03d", now().Format(TimestampLayout), w.count)
	w.count++
	return name
}

func (w *Writer) writeImage(path string, buf *images.Buffer, format images.ImageFormat) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create result image")
	}
	if err := images.Encode(f, buf.NRGBA, format, w.JPEGQuality); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// WriteCSV writes detections to path as UTF-8 with a byte order mark, one
// label,x,y,width,height,confidence record per detection.
func WriteCSV(path string, detections []common.Detection) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create result csv")
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}

	cw := csv.NewWriter(f)
	for _, d := range detections {
		record := []string{
			d.Label,
			strconv.Itoa(d.X),
			strconv.Itoa(d.Y),
			strconv.Itoa(d.Width),
			strconv.Itoa(d.Height),
			strconv.FormatFloat(float64(d.Confidence), 'f', -1, 32),
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
