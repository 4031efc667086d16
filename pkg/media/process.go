package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/walkabout/scorecard/pkg/logger"
)

var (
	ErrFileNotFound      = errors.New("file not found")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrEncodeFailed      = errors.New("image encoding failed")
)

const (
	DefaultJPEGQuality = 80
	// Anthropic rejects images above 5MB; larger uploads are still attempted.
	maxUploadSize = 5 * 1024 * 1024
)

// imageExts maps file extensions to MIME types for supported image formats.
var imageExts = map[string]string{
	".jpg":  MediaTypeJPEG,
	".jpeg": MediaTypeJPEG,
	".png":  MediaTypePNG,
	".gif":  MediaTypeGIF,
}

// EncodeFunc writes img as JPEG at the given quality.
type EncodeFunc func(w io.Writer, img image.Image, quality int) error

func encodeJPEG(w io.Writer, img image.Image, quality int) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// Normalizer turns image files into ImageUnits, converting anything that is
// not already JPEG. Conversion failures are logged and the original bytes kept.
type Normalizer struct {
	quality int
	encode  EncodeFunc
}

// NewNormalizer returns a Normalizer encoding at quality (1-100). Out of range
// values fall back to DefaultJPEGQuality.
func NewNormalizer(quality int) *Normalizer {
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Normalizer{quality: quality, encode: encodeJPEG}
}

// MediaTypeFor returns the MIME type implied by the extension of name.
func MediaTypeFor(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	mediaType, ok := imageExts[ext]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	return mediaType, nil
}

// Label returns the base name of path without its extension. Invalid UTF-8
// is replaced with U+FFFD, matching how the label is later written as a JSON key.
func Label(path string) string {
	base := filepath.Base(path)
	return strings.ToValidUTF8(strings.TrimSuffix(base, filepath.Ext(base)), "\uFFFD")
}

// Normalize reads the file at path and returns its upload-ready form.
func (n *Normalizer) Normalize(path string) (*ImageUnit, error) {
	if _, err := MediaTypeFor(path); err != nil {
		if _, statErr := os.Stat(path); errors.Is(statErr, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return n.NormalizeBytes(filepath.Base(path), data)
}

// NormalizeBytes applies the same rules as Normalize to data already in memory.
// name supplies the extension and the label.
func (n *Normalizer) NormalizeBytes(name string, data []byte) (*ImageUnit, error) {
	mediaType, err := MediaTypeFor(name)
	if err != nil {
		return nil, err
	}

	unit := &ImageUnit{
		Data:      data,
		MediaType: mediaType,
		Label:     Label(name),
		FileName:  filepath.Base(name),
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		n.keepOriginal(unit, fmt.Errorf("%w: decode: %v", ErrEncodeFailed, err))
		return unit, nil
	}

	if format == "jpeg" {
		unit.MediaType = MediaTypeJPEG
		n.checkSize(unit)
		return unit, nil
	}

	var buf bytes.Buffer
	if err := n.encode(&buf, flatten(img), n.quality); err != nil {
		n.keepOriginal(unit, fmt.Errorf("%w: %v", ErrEncodeFailed, err))
		return unit, nil
	}

	logger.DebugCF("media", "Converted image to JPEG", logger.Fields{
		"file":      unit.FileName,
		"from":      format,
		"bytes_in":  len(data),
		"bytes_out": buf.Len(),
		"quality":   n.quality,
	})

	unit.Data = buf.Bytes()
	unit.MediaType = MediaTypeJPEG
	unit.Converted = true
	n.checkSize(unit)
	return unit, nil
}

// keepOriginal leaves unit.Data untouched and settles its media type from the
// bytes when they are recognisable, so the type still matches what is sent.
func (n *Normalizer) keepOriginal(unit *ImageUnit, cause error) {
	if sniffed := sniffMediaType(unit.Data); sniffed != "" {
		unit.MediaType = sniffed
	}
	logger.WarnCF("media", "JPEG conversion failed, uploading original bytes", logger.Fields{
		"file":       unit.FileName,
		"media_type": unit.MediaType,
		"error":      cause.Error(),
	})
	n.checkSize(unit)
}

func (n *Normalizer) checkSize(unit *ImageUnit) {
	if len(unit.Data) > maxUploadSize {
		logger.WarnCF("media", "Image exceeds the API upload limit", logger.Fields{
			"file":  unit.FileName,
			"bytes": len(unit.Data),
			"limit": maxUploadSize,
		})
	}
}

func sniffMediaType(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	ct := http.DetectContentType(data)
	switch ct {
	case MediaTypeJPEG, MediaTypePNG, MediaTypeGIF:
		return ct
	}
	return ""
}

// flatten composites src over opaque white. JPEG has no alpha channel, and
// transparent PNG/GIF pixels would otherwise come out black.
func flatten(src image.Image) image.Image {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

// DedupeLabels suffixes repeated labels with _2, _3, ... in input order so
// that every unit maps to a distinct output key.
func DedupeLabels(units []*ImageUnit) {
	seen := make(map[string]int, len(units))
	taken := make(map[string]bool, len(units))
	for _, u := range units {
		u.Label = strings.ToValidUTF8(u.Label, "\uFFFD")
		taken[u.Label] = true
	}
	for _, u := range units {
		seen[u.Label]++
		if seen[u.Label] == 1 {
			continue
		}
		base := u.Label
		for i := seen[base]; ; i++ {
			candidate := base + "_" + strconv.Itoa(i)
			if !taken[candidate] {
				u.Label = candidate
				taken[candidate] = true
				break
			}
		}
	}
}
