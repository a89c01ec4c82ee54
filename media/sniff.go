package media

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"streetlight-watch/services"
)

// Sniff detects the content type of data from its bytes, ignoring whatever
// the client claimed.
func Sniff(data []byte) string {
	mtype := mimetype.Detect(data).String()
	return strings.TrimSpace(strings.SplitN(mtype, ";", 2)[0])
}

// IsAllowedImage reports whether data is an image type reports accept.
func IsAllowedImage(data []byte) (string, bool) {
	mtype := Sniff(data)
	return mtype, services.AllowedImageTypes[mtype]
}

// formatOf maps a content type to the short format name stored on images.
func formatOf(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "jpeg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	}
	return strings.TrimPrefix(contentType, "image/")
}
