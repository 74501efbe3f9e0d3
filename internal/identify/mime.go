package identify

import (
	"encoding/base64"
	"net/http"
)

// allowedImageTypes is the set of sniffed MIME types trusted over the data
// URL header. net/http.DetectContentType handles JPEG, PNG and GIF; WebP is
// detected separately because the WHATWG sniff table has no WebP signature.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// sniffLen is enough base64 to cover the longest signature checked.
const sniffLen = 32

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}

// allowedImageMIME returns the detected MIME type and true if data starts
// with an accepted image signature.
func allowedImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	if len(data) == 0 {
		return "", false
	}
	mime := http.DetectContentType(data)
	if allowedImageTypes[mime] {
		return mime, true
	}
	return "", false
}

// sniffPayloadMIME decodes the head of a base64 payload and sniffs it.
func sniffPayloadMIME(payload string) (string, bool) {
	head := payload
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	head = head[:len(head)-len(head)%4]

	data, err := base64.StdEncoding.DecodeString(head)
	if err != nil {
		return "", false
	}
	return allowedImageMIME(data)
}
