// Package qrcode renders subscription links as QR code images so chat
// front ends can offer scan-to-import alongside the plain URL.
package qrcode

import (
	"encoding/base64"
	"errors"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrEmptyContent is returned for empty or whitespace-only content.
	ErrEmptyContent = errors.New("qrcode: content is empty")
	// ErrEncode is returned when the underlying encoder fails.
	ErrEncode = errors.New("qrcode: encode failed")
)

// DefaultSize is the image edge length in pixels when none is given.
const DefaultSize = 256

// PNG encodes content as a QR code and returns the PNG bytes. Sizes of
// zero or less fall back to DefaultSize.
func PNG(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = DefaultSize
	}

	img, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrEncode, err)
	}
	return img, nil
}

// DataURI encodes content as a QR code PNG wrapped in a data URI, ready
// to embed in an <img> tag or send inline to a chat client.
func DataURI(content string, size int) (string, error) {
	img, err := PNG(content, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(img), nil
}
