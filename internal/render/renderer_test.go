package render

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/timmy/capvis/internal/domain"
	"github.com/timmy/capvis/internal/logger"
)

func testSamples(t *testing.T, n int) []Sample {
	t.Helper()
	dir := t.TempDir()
	samples := make([]Sample, 0, n)
	for i := 0; i < n; i++ {
		key := fmt.Sprintf("img%d", i)
		path := filepath.Join(dir, key+".png")
		img := imaging.New(64, 48, color.NRGBA{R: uint8(i * 40), G: 80, B: 120, A: 255})
		if err := imaging.Save(img, path); err != nil {
			t.Fatalf("save test image: %v", err)
		}
		samples = append(samples, Sample{
			Image: domain.ImageRecord{
				Key:     key,
				Path:    path,
				Format:  "png",
				Size:    100,
				ModTime: time.Now(),
			},
			Caption: &domain.Caption{SceneOverview: "solid color test card " + key},
		})
	}
	return samples
}

func TestRenderWritesArtifact(t *testing.T) {
	renderer := NewRenderer(logger.New(nil))
	samples := testSamples(t, 5)
	outputPath := filepath.Join(t.TempDir(), "demos", "demo.png")

	if err := renderer.Render(samples, outputPath, 2); err != nil {
		t.Fatalf("Render: %v", err)
	}

	artifact, err := imaging.Open(outputPath)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	wantW := margin*3 + imagePanelW + textPanelW
	wantH := margin + 2*(rowH+margin)
	if artifact.Bounds().Dx() != wantW || artifact.Bounds().Dy() != wantH {
		t.Errorf("artifact size = %dx%d, want %dx%d",
			artifact.Bounds().Dx(), artifact.Bounds().Dy(), wantW, wantH)
	}
}

func TestRenderDeterministicSelection(t *testing.T) {
	renderer := NewRenderer(logger.New(nil))
	samples := testSamples(t, 5)
	dir := t.TempDir()

	first := filepath.Join(dir, "first.png")
	second := filepath.Join(dir, "second.png")
	if err := renderer.Render(samples, first, 3); err != nil {
		t.Fatalf("first Render: %v", err)
	}
	if err := renderer.Render(samples, second, 3); err != nil {
		t.Fatalf("second Render: %v", err)
	}

	a, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read first: %v", err)
	}
	b, err := os.ReadFile(second)
	if err != nil {
		t.Fatalf("read second: %v", err)
	}
	if string(a) != string(b) {
		t.Error("identical input should render identical artifacts")
	}
}

func TestRenderNoSamples(t *testing.T) {
	renderer := NewRenderer(logger.New(nil))
	err := renderer.Render(nil, filepath.Join(t.TempDir(), "demo.png"), 3)
	if err != domain.ErrNoSamples {
		t.Errorf("Render with no samples = %v, want ErrNoSamples", err)
	}
}

func TestRenderCountClamped(t *testing.T) {
	renderer := NewRenderer(logger.New(nil))
	samples := testSamples(t, 2)
	outputPath := filepath.Join(t.TempDir(), "demo.png")

	// Asking for more rows than samples renders everything once.
	if err := renderer.Render(samples, outputPath, 10); err != nil {
		t.Fatalf("Render: %v", err)
	}
	artifact, err := imaging.Open(outputPath)
	if err != nil {
		t.Fatalf("open artifact: %v", err)
	}
	wantH := margin + 2*(rowH+margin)
	if artifact.Bounds().Dy() != wantH {
		t.Errorf("artifact height = %d, want %d for 2 rows", artifact.Bounds().Dy(), wantH)
	}
}

func TestRenderMissingImageFile(t *testing.T) {
	renderer := NewRenderer(logger.New(nil))
	samples := []Sample{{
		Image: domain.ImageRecord{
			Key:  "gone",
			Path: filepath.Join(t.TempDir(), "gone.jpg"),
		},
		Caption: &domain.Caption{SceneOverview: "vanished"},
	}}
	outputPath := filepath.Join(t.TempDir(), "demo.png")

	// A sample whose file disappeared still renders its caption panel.
	if err := renderer.Render(samples, outputPath, 1); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		t.Errorf("artifact not written: %v", err)
	}
}

func TestFormatCaptionWrapsLongLines(t *testing.T) {
	caption := &domain.Caption{RawText: strings.Repeat("abcdefghij", 30)}

	lines := formatCaption(caption)
	if len(lines) < 2 {
		t.Fatalf("expected wrapped lines, got %d", len(lines))
	}
	for i, line := range lines {
		if len(line) > maxCols {
			t.Errorf("line %d exceeds %d columns: %d", i, maxCols, len(line))
		}
	}
}
