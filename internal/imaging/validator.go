// Package imaging provides the fast, in-process path for probing static
// image templates: magic-byte format detection, dimension/alpha decoding,
// and content hashing, without paying for an ffprobe subprocess. Adapted
// from an upload-validation path that did the same decode-and-inspect work
// for a different set of formats.
package imaging

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/webp"
)

// StaticFormats are the image formats decodable by the fast path. Anything
// else (including any video container) falls through to the ffprobe path.
var StaticFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"webp": true,
	"gif":  true,
}

// Probe holds what the fast path can learn about a static image template.
type Probe struct {
	Format      string
	Width       int
	Height      int
	HasAlpha    bool
	ContentHash string
}

// DetectFormat identifies an image format from magic bytes, never from a
// declared Content-Type.
func DetectFormat(data []byte) string {
	if len(data) < 12 {
		return ""
	}

	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "jpeg"
	case bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return "png"
	case bytes.HasPrefix(data, []byte{0x47, 0x49, 0x46, 0x38}):
		return "gif"
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "webp"
	}

	return ""
}

// ProbeStaticImage decodes a static image template to recover its dimensions,
// alpha-channel presence, and content hash. Returns an error for anything the
// fast path doesn't recognize, signaling the caller to fall back to ffprobe.
func ProbeStaticImage(data []byte) (*Probe, error) {
	format := DetectFormat(data)
	if format == "" || !StaticFormats[format] {
		return nil, errors.New("not a recognized static image format")
	}

	reader := bytes.NewReader(data)
	config, _, err := image.DecodeConfig(reader)
	if err != nil {
		return nil, err
	}

	hash := sha256.Sum256(data)

	probe := &Probe{
		Format:      format,
		Width:       config.Width,
		Height:      config.Height,
		ContentHash: hex.EncodeToString(hash[:]),
	}

	reader.Seek(0, io.SeekStart)
	img, _, err := image.Decode(reader)
	if err != nil {
		return nil, err
	}
	probe.HasAlpha = hasAlphaChannel(img)

	return probe, nil
}

func hasAlphaChannel(img image.Image) bool {
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return true
	default:
		return false
	}
}
