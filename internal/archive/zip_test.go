package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/local/pdfsplitd/internal/split"
)

func stage(t *testing.T, dir, name string, data []byte) split.OutputArtifact {
	t.Helper()
	path := filepath.Join(dir, name+".staged")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("stage: %v", err)
	}
	return split.OutputArtifact{FileName: name, SizeBytes: int64(len(data)), Path: path}
}

func TestPackRoundTrip(t *testing.T) {
	dir := t.TempDir()
	artifacts := []split.OutputArtifact{
		stage(t, dir, "report_part_1.pdf", []byte("one")),
		stage(t, dir, "report_part_2.pdf", []byte("two")),
		stage(t, dir, "report_part_3.pdf", []byte("three")),
	}
	artifacts[0].PageCount, artifacts[1].PageCount, artifacts[2].PageCount = 3, 3, 4

	var buf bytes.Buffer
	if err := (&Packager{}).Pack(&buf, artifacts); err != nil {
		t.Fatalf("Pack: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip open: %v", err)
	}
	if len(zr.File) != len(artifacts) {
		t.Fatalf("archive has %d entries, want %d", len(zr.File), len(artifacts))
	}
	wantData := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	pages := 0
	for i, f := range zr.File {
		if f.Name != artifacts[i].FileName {
			t.Errorf("entry %d name %q, want %q (plan order)", i, f.Name, artifacts[i].FileName)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry: %v", err)
		}
		got, _ := io.ReadAll(rc)
		rc.Close()
		if !bytes.Equal(got, wantData[i]) {
			t.Errorf("entry %d content %q, want %q", i, got, wantData[i])
		}
		pages += artifacts[i].PageCount
	}
	if pages != 10 {
		t.Errorf("page counts sum to %d, want 10", pages)
	}
}

func TestPackCollisionSuffix(t *testing.T) {
	dir := t.TempDir()
	artifacts := []split.OutputArtifact{
		stage(t, dir, "part.pdf", []byte("a")),
		stage(t, dir, "part.pdf", []byte("b")),
		stage(t, dir, "part.pdf", []byte("c")),
	}
	var buf bytes.Buffer
	if err := (&Packager{}).Pack(&buf, artifacts); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip open: %v", err)
	}
	want := []string{"part.pdf", "part_2.pdf", "part_3.pdf"}
	for i, f := range zr.File {
		if f.Name != want[i] {
			t.Errorf("entry %d name %q, want %q", i, f.Name, want[i])
		}
	}
}

func TestPackCollisionWithSuffixedArtifact(t *testing.T) {
	dir := t.TempDir()
	artifacts := []split.OutputArtifact{
		stage(t, dir, "a.pdf", []byte("a")),
		stage(t, dir, "a.pdf", []byte("b")),
		stage(t, dir, "a_2.pdf", []byte("c")),
	}
	var buf bytes.Buffer
	if err := (&Packager{}).Pack(&buf, artifacts); err != nil {
		t.Fatalf("Pack: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip open: %v", err)
	}
	seen := map[string]int{}
	for _, f := range zr.File {
		seen[f.Name]++
	}
	for name, n := range seen {
		if n > 1 {
			t.Errorf("entry %q appears %d times", name, n)
		}
	}
	if len(seen) != len(artifacts) {
		t.Fatalf("archive has %d distinct entries, want %d", len(seen), len(artifacts))
	}
}

func TestPackMissingArtifact(t *testing.T) {
	artifacts := []split.OutputArtifact{{FileName: "gone.pdf", Path: "/nonexistent/gone"}}
	err := (&Packager{}).Pack(io.Discard, artifacts)
	var ae *split.ArchivePackagingError
	if !errors.As(err, &ae) {
		t.Fatalf("want ArchivePackagingError, got %v", err)
	}
}
