package zip

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/glimlang/glimlang-recorder-dev/pkg/logger"
)

func TestExtract(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "test.zip")

	if err := writeArchive(src, map[string][]byte{
		"bin/ffmpeg":    []byte("#!ffmpeg"),
		"../escape.txt": []byte("nope"),
	}); err != nil {
		t.Fatalf("couldn't write the test archive: %v", err)
	}

	dest := filepath.Join(dir, "out")
	if err := os.MkdirAll(dest, os.ModePerm); err != nil {
		t.Fatal(err)
	}

	files, err := New(logger.Default()).Extract(src, dest)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 extracted file, got %v", files)
	}
	data, err := os.ReadFile(files[0])
	if err != nil || string(data) != "#!ffmpeg" {
		t.Errorf("wrong extracted content: %v %v", string(data), err)
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.txt")); !os.IsNotExist(err) {
		t.Errorf("path traversal file has been extracted")
	}
}

func writeArchive(path string, files map[string][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	w := zip.NewWriter(f)
	for name, data := range files {
		z, err := w.Create(name)
		if err != nil {
			return err
		}
		if _, err = z.Write(data); err != nil {
			return err
		}
	}
	return w.Close()
}
