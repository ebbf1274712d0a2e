package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// datasetExts are the member extensions ExtractDataset considers.
var datasetExts = map[string]bool{".csv": true, ".tsv": true, ".txt": true, ".xlsx": true}

// ExtractDataset pulls one dataset file out of a ZIP archive into destDir.
// With member set, that entry is extracted; otherwise the archive must hold
// exactly one file with a dataset extension.
func ExtractDataset(zipPath, member, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: open archive")
	}
	defer r.Close() //nolint:errcheck

	if member != "" {
		for _, f := range r.File {
			if f.Name == member {
				return extractZIPEntry(f, destDir)
			}
		}
		return "", eris.Errorf("zip: file %q not found in archive", member)
	}

	var candidates []*zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if datasetExts[strings.ToLower(filepath.Ext(f.Name))] {
			candidates = append(candidates, f)
		}
	}
	if len(candidates) != 1 {
		return "", eris.Errorf("zip: expected exactly 1 dataset file, got %d", len(candidates))
	}
	return extractZIPEntry(candidates[0], destDir)
}

// IsZIP reports whether the file at path starts with the ZIP local header.
func IsZIP(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, eris.Wrap(err, "zip: open file")
	}
	defer f.Close() //nolint:errcheck

	head := make([]byte, 4)
	if _, err := io.ReadFull(f, head); err != nil {
		return false, nil
	}
	return string(head) == "PK\x03\x04", nil
}

func extractZIPEntry(f *zip.File, destDir string) (string, error) {
	destPath := filepath.Join(destDir, f.Name)
	if !strings.HasPrefix(filepath.Clean(destPath), filepath.Clean(destDir)+string(os.PathSeparator)) {
		return "", eris.Errorf("zip: illegal path %q (zip slip attempt)", f.Name)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return "", eris.Wrap(err, "zip: create parent directory")
	}

	rc, err := f.Open()
	if err != nil {
		return "", eris.Wrap(err, "zip: open entry")
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return "", eris.Wrap(err, "zip: create file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return "", eris.Wrap(err, "zip: write file")
	}
	return destPath, nil
}
