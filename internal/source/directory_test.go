package source

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirectorySourceList(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.jpg")
	writeFile(t, dir, "a.png")
	writeFile(t, dir, "c.JPEG")
	writeFile(t, dir, "notes.txt")
	writeFile(t, dir, "archive.zip")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeFile(t, filepath.Join(dir, "nested"), "d.jpg")

	src := NewDirectorySource(dir)
	images, err := src.List(t.Context())
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	// Flat listing, image extensions only, name order.
	if len(images) != 3 {
		t.Fatalf("got %d images, want 3: %+v", len(images), images)
	}
	wantKeys := []string{"a", "b", "c"}
	for i, want := range wantKeys {
		if images[i].Key != want {
			t.Errorf("images[%d].Key = %q, want %q", i, images[i].Key, want)
		}
	}
	if images[2].Format != "jpeg" {
		t.Errorf("uppercase extension not normalized: %q", images[2].Format)
	}
	for _, img := range images {
		if img.Size == 0 {
			t.Errorf("image %s has zero size", img.Key)
		}
		if img.ModTime.IsZero() {
			t.Errorf("image %s has zero mod time", img.Key)
		}
	}
}

func TestDirectorySourceMissingDir(t *testing.T) {
	src := NewDirectorySource(filepath.Join(t.TempDir(), "does-not-exist"))
	if _, err := src.List(t.Context()); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestDirectorySourceStableOrder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"z.jpg", "m.jpg", "a.jpg"} {
		writeFile(t, dir, name)
	}

	src := NewDirectorySource(dir)
	first, err := src.List(t.Context())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	second, err := src.List(t.Context())
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("listing sizes differ")
	}
	for i := range first {
		if first[i].Key != second[i].Key {
			t.Errorf("order not stable at %d: %q vs %q", i, first[i].Key, second[i].Key)
		}
	}
}
