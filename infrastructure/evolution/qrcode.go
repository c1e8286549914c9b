package evolution

import (
	"encoding/base64"
	"strings"

	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"
)

const pngDataURIPrefix = "data:image/png;base64,"

// renderQR returns a displayable data URI. The provider normally sends a base64 PNG;
// when it only sends the raw code we encode it ourselves.
func renderQR(p qrPayload) string {
	if b := strings.TrimSpace(p.Base64); b != "" {
		if strings.HasPrefix(b, "data:") {
			return b
		}
		return pngDataURIPrefix + b
	}

	code := strings.TrimSpace(p.Code)
	if code == "" {
		return ""
	}
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		logrus.WithError(err).Warn("[EVOLUTION] failed to render QR code")
		return ""
	}
	return pngDataURIPrefix + base64.StdEncoding.EncodeToString(png)
}

// RenderQR normalizes a QR pushed through a webhook (base64 image or raw code) into a data URI.
func RenderQR(base64Image, code string) string {
	return renderQR(qrPayload{Base64: base64Image, Code: code})
}
