package identify

import (
	"strings"

	"github.com/vbonduro/boardgamer/internal/llm"
)

// ParseNames turns the vision model's free text into a name list. "None" or
// an empty answer yields an empty list; otherwise entries are split on commas,
// trimmed, and exact duplicates dropped keeping the first occurrence.
func ParseNames(raw string) []string {
	raw = strings.TrimSpace(raw)
	names := make([]string, 0)
	if raw == "" || strings.EqualFold(raw, "none") {
		return names
	}

	seen := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

const defaultMimeType = "image/jpeg"

// ParseDataURL splits a data URL on its first comma. A URL without a comma
// gives an empty payload. The MIME type is sniffed from the payload when it
// carries a known image signature, else taken from a "data:<mime>;base64"
// header, else image/jpeg.
func ParseDataURL(dataURL string) llm.Image {
	header, payload, found := strings.Cut(dataURL, ",")
	if !found {
		return llm.Image{MimeType: defaultMimeType}
	}

	if sniffed, ok := sniffPayloadMIME(payload); ok {
		return llm.Image{MimeType: sniffed, Data: payload}
	}

	mime := defaultMimeType
	if rest, ok := strings.CutPrefix(header, "data:"); ok {
		if m, ok := strings.CutSuffix(rest, ";base64"); ok && m != "" {
			mime = m
		}
	}
	return llm.Image{MimeType: mime, Data: payload}
}
