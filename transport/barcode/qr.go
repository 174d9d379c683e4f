// Package barcode renders and scans the QR images that carry DCC
// barcode text. The verification core never sees the image form.
package barcode

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/skip2/go-qrcode"
)

// Create renders the barcode text as a QR code PNG of size x size
// pixels.
func Create(content string, size int) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("nothing to encode")
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to create QR code: %v", err)
	}
	return png, nil
}

// Decode scans a QR code image and returns its text content.
func Decode(img []byte) (string, error) {
	m, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %v", err)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(m)
	if err != nil {
		return "", fmt.Errorf("failed to prepare image: %v", err)
	}

	result, err := zxqrcode.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		return "", fmt.Errorf("failed to read QR code: %v", err)
	}
	return result.GetText(), nil
}
