package sim

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/smazurov/camcore/internal/camera"
)

const (
	frameWidth  = 320
	frameHeight = 240
	jpegQuality = 85
)

// RenderFrame draws a test frame for id at size. The frame is drawn as the
// sensor sees it and then rotated clockwise by orientation degrees.
func RenderFrame(id camera.Identity, size camera.Size, orientation int) image.Image {
	bg := color.NRGBA{R: 32, G: 64, B: 160, A: 255}
	if id.Sensor == camera.SensorFront {
		bg = color.NRGBA{R: 160, G: 64, B: 32, A: 255}
	}
	frame := imaging.New(frameWidth, frameHeight, bg)

	// A bright bar along the sensor's top edge makes the applied rotation
	// visible in the output.
	bar := imaging.New(frameWidth, frameHeight/8, color.NRGBA{R: 240, G: 240, B: 240, A: 255})
	frame = imaging.Paste(frame, bar, image.Pt(0, 0))
	marker := imaging.New(frameWidth/8, frameHeight/8, color.NRGBA{R: 240, G: 200, B: 0, A: 255})
	frame = imaging.Paste(frame, marker, image.Pt(0, frameHeight/8))

	var img image.Image = frame
	switch ((orientation % 360) + 360) % 360 {
	case 90:
		img = imaging.Rotate270(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	}

	if size.IsZero() {
		return img
	}
	// Output size is given in sensor terms; swap for quarter turns.
	w, h := size.Width, size.Height
	if orientation%180 != 0 {
		w, h = h, w
	}
	return imaging.Resize(img, w, h, imaging.Lanczos)
}

// WriteStill renders a frame and writes it to path as a JPEG. The file is
// written to a temporary name and renamed, so it is either absent or
// complete.
func WriteStill(path string, id camera.Identity, size camera.Size, orientation int) error {
	if path == "" {
		return fmt.Errorf("no output path")
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".still-*.jpg")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	img := RenderFrame(id, size, orientation)
	if err := imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to encode still: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write still: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move still into place: %w", err)
	}
	return nil
}
