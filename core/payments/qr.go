package payments

import (
	"fmt"
	"io"

	qrcode "github.com/skip2/go-qrcode"
)

// RenderQR prints the checkout URL as a terminal QR code followed by the URL.
func RenderQR(w io.Writer, checkoutURL string) error {
	q, err := qrcode.New(checkoutURL, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("qr code: %w", err)
	}
	if _, err := io.WriteString(w, q.ToSmallString(false)); err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, checkoutURL)
	return err
}

// WriteQRPNG saves the checkout QR code as a PNG image.
func WriteQRPNG(path, checkoutURL string, size int) error {
	if size <= 0 {
		size = 256
	}
	return qrcode.WriteFile(checkoutURL, qrcode.Medium, size, path)
}
