// Package media prepares captured attachments for durable queueing:
// MIME detection for untyped uploads and thumbnail generation for images.
package media

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"

	"github.com/wayfound/trailbook/internal/logging"
	"github.com/wayfound/trailbook/internal/models"
)

const (
	thumbnailMaxWidth  = 320
	thumbnailMaxHeight = 320
)

// DetectMimeType sniffs the MIME type of raw attachment bytes.
func DetectMimeType(data []byte) string {
	return mimetype.Detect(data).String()
}

// Thumbnail renders a JPEG preview bounded by the given dimensions,
// preserving aspect ratio.
func Thumbnail(data []byte, maxWidth, maxHeight int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	thumb := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Prepare fills in what the capture shell left out: sniffs the MIME type
// when missing and attaches a preview thumbnail for image media.
//
// Thumbnailing failure is non-fatal; the full-resolution bytes are what
// gets delivered, the thumbnail only serves the offline queue view.
func Prepare(m *models.PendingMedia) {
	if m.MimeType == "" {
		m.MimeType = DetectMimeType(m.Bytes)
	}

	if !strings.HasPrefix(m.MimeType, "image/") {
		return
	}

	thumb, err := Thumbnail(m.Bytes, thumbnailMaxWidth, thumbnailMaxHeight)
	if err != nil {
		logging.Warn("Failed to generate thumbnail",
			map[string]interface{}{
				"media_id":  m.ID.String(),
				"file_name": m.OriginalFileName,
				"error":     err.Error(),
			})
		return
	}
	m.ThumbnailBytes = thumb
}
