package zip

import (
	"archive/zip"
	"bytes"
	"testing"
)

func TestArchiveAssets(t *testing.T) {
	data := ArchiveAssets([]Asset{
		{Filename: "a.png", MIME: "image/png", Data: []byte("one")},
		{Filename: "a.png", MIME: "image/png", Data: []byte("two")},
		{Filename: "empty.png", MIME: "image/png"},
	})
	if len(data) == 0 {
		t.Fatal("expected archive bytes")
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(reader.File) != 2 {
		t.Fatalf("got %d entries, want 2 (empty skipped)", len(reader.File))
	}
	names := map[string]bool{}
	for _, f := range reader.File {
		names[f.Name] = true
	}
	if !names["a.png"] || !names["a.png-1"] {
		t.Fatalf("unexpected entry names: %v", names)
	}
}
