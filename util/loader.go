// Package util - Input path expansion.
package util

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"

	"github.com/nvr-ai/yolodrop/images"
)

// ListImageFiles returns the decodable image files directly inside dir, sorted by name.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []string: The image file paths.
// - error: Error if the directory cannot be read.
func ListImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read directory %s", dir)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !images.IsSupportedExtension(entry.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	return files, nil
}

// ExpandInputs turns dropped paths into the list of files to process. Files keep their
// order and are passed through even when they do not exist or look unsupported, so the
// failure is reported for that file. Directories are replaced by ListImageFiles.
//
// Arguments:
// - paths: File and directory paths in the order given.
//
// Returns:
// - []string: The files to process.
// - error: Error if a directory cannot be read.
func ExpandInputs(paths []string) ([]string, error) {
	var out []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			out = append(out, p)
			continue
		}

		files, err := ListImageFiles(p)
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}
