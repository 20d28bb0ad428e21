// Package media provides unit tests for attachment preparation.
package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/wayfound/trailbook/internal/models"
)

// pngBytes renders a small solid PNG for test fixtures.
func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 30, G: 120, B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode fixture PNG: %v", err)
	}
	return buf.Bytes()
}

// TestDetectMimeType tests sniffing of common capture formats.
func TestDetectMimeType(t *testing.T) {
	if got := DetectMimeType(pngBytes(t, 4, 4)); got != "image/png" {
		t.Errorf("Expected image/png, got %s", got)
	}
	if got := DetectMimeType([]byte("plain text note")); !strings.HasPrefix(got, "text/plain") {
		t.Errorf("Expected text/plain, got %s", got)
	}
}

// TestThumbnailBounds tests that thumbnails respect the bounding box.
func TestThumbnailBounds(t *testing.T) {
	thumb, err := Thumbnail(pngBytes(t, 800, 400), 320, 320)
	if err != nil {
		t.Fatalf("Thumbnail failed: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("Thumbnail is not a decodable image: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > 320 || bounds.Dy() > 320 {
		t.Errorf("Thumbnail exceeds bounds: %dx%d", bounds.Dx(), bounds.Dy())
	}
	// Aspect ratio preserved: 800x400 fit into 320x320 is 320x160
	if bounds.Dx() != 320 || bounds.Dy() != 160 {
		t.Errorf("Expected 320x160, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

// TestThumbnailRejectsNonImage tests the error path for undecodable bytes.
func TestThumbnailRejectsNonImage(t *testing.T) {
	if _, err := Thumbnail([]byte("not an image"), 320, 320); err == nil {
		t.Error("Expected error for non-image bytes")
	}
}

// TestPrepareFillsMimeAndThumbnail tests full preparation of an image item.
func TestPrepareFillsMimeAndThumbnail(t *testing.T) {
	m := &models.PendingMedia{
		Bytes:            pngBytes(t, 640, 480),
		OriginalFileName: "trail.png",
	}

	Prepare(m)

	if m.MimeType != "image/png" {
		t.Errorf("Expected sniffed image/png, got %s", m.MimeType)
	}
	if len(m.ThumbnailBytes) == 0 {
		t.Error("Expected thumbnail to be generated")
	}
}

// TestPrepareNonImagePassesThrough tests that non-image media gets a MIME
// type but no thumbnail, and never fails the capture.
func TestPrepareNonImagePassesThrough(t *testing.T) {
	m := &models.PendingMedia{
		Bytes:            []byte("GPX track contents"),
		OriginalFileName: "track.gpx",
	}

	Prepare(m)

	if m.MimeType == "" {
		t.Error("Expected MIME type to be sniffed")
	}
	if len(m.ThumbnailBytes) != 0 {
		t.Error("Expected no thumbnail for non-image media")
	}
}

// TestPrepareKeepsSuppliedMimeType tests that an explicit content type from
// the capture shell is not overwritten.
func TestPrepareKeepsSuppliedMimeType(t *testing.T) {
	m := &models.PendingMedia{
		Bytes:    pngBytes(t, 4, 4),
		MimeType: "image/x-custom",
	}

	Prepare(m)

	if m.MimeType != "image/x-custom" {
		t.Errorf("Expected supplied MIME type preserved, got %s", m.MimeType)
	}
}
