// Package asset turns a design submission into the input for an AI request.
package asset

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidDataURL is returned when a payload is not a base64 data URL.
var ErrInvalidDataURL = errors.New("invalid data URL")

// Image is an inline payload: its MIME type and raw bytes.
type Image struct {
	MIMEType string
	Data     []byte
}

// Base64 returns the payload as standard base64.
func (i *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL renders the payload as data:<mime>;base64,<payload>.
func (i *Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64()
}

// IsVisual reports whether the payload can be sent as a vision input.
func (i *Image) IsVisual() bool {
	return i != nil && strings.HasPrefix(i.MIMEType, "image/")
}

// ParseDataURL decodes data:<mime>;base64,<payload>.
func ParseDataURL(s string) (*Image, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, ErrInvalidDataURL
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok || mimeType == "" {
		return nil, ErrInvalidDataURL
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return &Image{MIMEType: mimeType, Data: data}, nil
}

// FromFile reads a local file as an inline payload. The MIME type comes from
// the extension, falling back to content sniffing.
func FromFile(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read design file: %w", err)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
		if i := strings.Index(mimeType, ";"); i >= 0 {
			mimeType = mimeType[:i]
		}
	}
	return &Image{MIMEType: mimeType, Data: data}, nil
}
