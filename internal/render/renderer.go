package render

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/timmy/capvis/internal/domain"
	"github.com/timmy/capvis/internal/logger"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

// Layout of the demo artifact: one row per sample, image panel on the left,
// caption text panel on the right.
const (
	margin      = 20
	imagePanelW = 480
	rowH        = 360
	textPanelW  = 600
	lineH       = 14
	maxCols     = 84

	// demoSeed keeps sample selection reproducible across runs.
	demoSeed = 42
)

// Sample pairs one image with its caption for rendering.
type Sample struct {
	Image   domain.ImageRecord
	Caption *domain.Caption
}

// Renderer produces the demo artifact. It only reads image files and the
// captions it is given; it never touches the caption store or the service.
type Renderer struct {
	logger *logger.Logger
}

// NewRenderer creates a new demo renderer.
func NewRenderer(log *logger.Logger) *Renderer {
	return &Renderer{logger: log}
}

// Render writes a single PNG artifact showing up to count samples, each
// image beside its formatted caption. Selection over a larger input is a
// fixed-seed shuffle so repeated runs pick the same samples.
func (r *Renderer) Render(samples []Sample, outputPath string, count int) error {
	if len(samples) == 0 {
		return domain.ErrNoSamples
	}
	if count < 1 {
		count = 1
	}
	if count > len(samples) {
		count = len(samples)
	}

	selected := make([]Sample, len(samples))
	copy(selected, samples)
	rng := rand.New(rand.NewSource(demoSeed))
	rng.Shuffle(len(selected), func(i, j int) {
		selected[i], selected[j] = selected[j], selected[i]
	})
	selected = selected[:count]

	canvasW := margin*3 + imagePanelW + textPanelW
	canvasH := margin + count*(rowH+margin)
	canvas := imaging.New(canvasW, canvasH, color.White)

	for i, sample := range selected {
		rowY := margin + i*(rowH+margin)
		r.drawImagePanel(canvas, sample, margin, rowY)
		r.drawCaptionPanel(canvas, sample, margin*2+imagePanelW, rowY)
	}

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create demo directory: %w", err)
		}
	}
	if err := imaging.Save(canvas, outputPath); err != nil {
		return fmt.Errorf("failed to save demo artifact: %w", err)
	}

	r.logger.WithFields(logger.Fields{
		"path":    outputPath,
		"samples": count,
	}).Info("Demo artifact rendered")
	return nil
}

func (r *Renderer) drawImagePanel(canvas *image.NRGBA, sample Sample, x, y int) {
	img, err := imaging.Open(sample.Image.Path, imaging.AutoOrientation(true))
	if err != nil {
		r.logger.WithField(logger.FieldImageKey, sample.Image.Key).WithError(err).Warn("Cannot open image for demo, rendering caption only")
		drawLines(canvas, []string{"[image unavailable]", sample.Image.Path}, x, y+lineH)
		return
	}

	fitted := imaging.Fit(img, imagePanelW, rowH-lineH*2, imaging.Lanczos)
	offX := x + (imagePanelW-fitted.Bounds().Dx())/2
	offY := y + (rowH-lineH*2-fitted.Bounds().Dy())/2
	rect := fitted.Bounds().Add(image.Pt(offX, offY))
	draw.Draw(canvas, rect, fitted, fitted.Bounds().Min, draw.Src)

	drawLines(canvas, []string{"Image: " + sample.Image.Key}, x, y+rowH-lineH/2)
}

func (r *Renderer) drawCaptionPanel(canvas *image.NRGBA, sample Sample, x, y int) {
	lines := formatCaption(sample.Caption)

	maxLines := (rowH - lineH) / lineH
	if len(lines) > maxLines {
		lines = append(lines[:maxLines-1], "...")
	}
	drawLines(canvas, lines, x, y+lineH)
}

// formatCaption renders the caption as wrapped monospace lines: indented
// JSON for structured captions, the verbatim text for raw fallbacks.
func formatCaption(caption *domain.Caption) []string {
	var text string
	if caption.Structured() {
		pretty, err := json.MarshalIndent(caption, "", "  ")
		if err != nil {
			text = fmt.Sprintf("(unprintable caption: %v)", err)
		} else {
			text = string(pretty)
		}
	} else {
		text = caption.RawText
	}

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		for len(line) > maxCols {
			lines = append(lines, line[:maxCols])
			line = line[maxCols:]
		}
		lines = append(lines, line)
	}
	return lines
}

// drawLines draws monospace text onto the canvas starting at (x, y).
func drawLines(canvas *image.NRGBA, lines []string, x, y int) {
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(x, y+i*lineH)
		drawer.DrawString(line)
	}
}
