// Package archive bundles split output artifacts into a single downloadable
// zip stream.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/local/pdfsplitd/internal/split"
)

// Packager writes artifacts into one zip archive, entries in plan order.
// Artifact bytes are streamed from their staged files, never held in memory
// all at once.
type Packager struct {
	// Level is the deflate compression level. Zero means flate.DefaultCompression.
	Level int
}

// Pack writes one entry per artifact to w. Entry names follow the artifacts'
// suggested file names; collisions get a numeric suffix (_2, _3, ...).
func (p *Packager) Pack(w io.Writer, artifacts []split.OutputArtifact) error {
	level := p.Level
	if level == 0 {
		level = flate.DefaultCompression
	}
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	used := map[string]int{}
	for _, a := range artifacts {
		name := uniqueName(used, a.FileName)
		entry, err := zw.Create(name)
		if err != nil {
			return &split.ArchivePackagingError{Entry: name, Err: err}
		}
		if err := copyArtifact(entry, a); err != nil {
			return &split.ArchivePackagingError{Entry: name, Err: err}
		}
	}
	if err := zw.Close(); err != nil {
		return &split.ArchivePackagingError{Err: err}
	}
	return nil
}

func copyArtifact(dst io.Writer, a split.OutputArtifact) error {
	f, err := os.Open(a.Path)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return nil
}

// uniqueName resolves entry-name collisions deterministically: the second
// occurrence of report.pdf becomes report_2.pdf, the third report_3.pdf.
// Generated names are reserved in used, so an artifact that legitimately
// carries a suffixed name never collides with an earlier suffix.
func uniqueName(used map[string]int, name string) string {
	used[name]++
	if used[name] == 1 {
		return name
	}
	ext := ""
	base := name
	if i := strings.LastIndex(name, "."); i > 0 {
		base, ext = name[:i], name[i:]
	}
	for {
		candidate := fmt.Sprintf("%s_%d%s", base, used[name], ext)
		if used[candidate] == 0 {
			used[candidate] = 1
			return candidate
		}
		used[name]++
	}
}
