package archive

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/smy-101/skillpack/internal/types"
)

// CompressionLevel is the deflate level used for every entry.
const CompressionLevel = 6

// WriteZip packs entries into a ZIP archive. Entries are written in path
// order so the same input always yields the same archive.
func WriteZip(entries []types.ArchiveEntry) ([]byte, error) {
	sorted := append([]types.ArchiveEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RelativePath < sorted[j].RelativePath })

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, CompressionLevel)
	})

	seen := make(map[string]struct{}, len(sorted))
	for _, entry := range sorted {
		name := strings.TrimPrefix(strings.ReplaceAll(entry.RelativePath, "\\", "/"), "/")
		if name == "" {
			return nil, fmt.Errorf("archive entry has empty name")
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate archive entry: %s", name)
		}
		seen[name] = struct{}{}

		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
		if _, err := w.Write(entry.Data); err != nil {
			return nil, fmt.Errorf("failed to write %s to archive: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}
