// Package addressqr renders wallet addresses as PNG QR codes.
package addressqr

import (
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the edge length of rendered images in pixels.
const DefaultSize = 256

// ErrEmptyAddress indicates there is nothing to encode.
var ErrEmptyAddress = errors.New("address is empty")

// Renderer encodes addresses into PNG images.
type Renderer struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewRenderer returns a Renderer producing size x size images. Non-positive sizes use DefaultSize.
func NewRenderer(size int) *Renderer {
	if size <= 0 {
		size = DefaultSize
	}
	return &Renderer{size: size, level: qrcode.Medium}
}

// Render returns the PNG bytes of a QR code carrying address.
func (renderer *Renderer) Render(address string) ([]byte, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return nil, ErrEmptyAddress
	}
	image, err := qrcode.Encode(trimmed, renderer.level, renderer.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return image, nil
}
