package media

import "encoding/base64"

// Supported media types for scorecard uploads.
const (
	MediaTypeJPEG = "image/jpeg"
	MediaTypePNG  = "image/png"
	MediaTypeGIF  = "image/gif"
)

// ImageUnit is one input image after normalization, ready to be placed in a
// multimodal request. It lives for a single request.
type ImageUnit struct {
	Data      []byte // encoded image bytes
	MediaType string // MIME type matching Data
	Label     string // filename without extension, used as the output key
	FileName  string // original base name
	Converted bool   // true when Data was re-encoded to JPEG
}

// Base64 returns Data in standard base64 encoding.
func (u ImageUnit) Base64() string {
	return base64.StdEncoding.EncodeToString(u.Data)
}

// DataURL returns Data as a data: URL, the form OpenAI-compatible APIs expect.
func (u ImageUnit) DataURL() string {
	return "data:" + u.MediaType + ";base64," + u.Base64()
}
