package asset

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// UnknownType is the sentinel returned when neither content sniffing nor the
// extension table produces an allowed type. Callers must treat it as a
// rejection signal; assets of unknown type are never persisted.
const UnknownType = "application/octet-stream"

// allowedTypes is the upload allow-list, grouped as in the admin UI:
// images, videos and documents.
var allowedTypes = []string{
	"image/jpeg", "image/png", "image/gif", "image/webp", "image/bmp",

	"video/mp4", "video/avi", "video/mov", "video/webm", "video/quicktime",

	"application/pdf", "application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"text/plain", "application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/zip", "application/x-rar-compressed",
}

// extensionTypes is the fallback table consulted when content sniffing is
// inconclusive.
var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".pdf":  "application/pdf",
}

// Classify determines the MIME type of raw upload bytes. It prefers magic
// signature sniffing and accepts the sniffed type only if it is on the
// allow-list; otherwise it falls back to the filename extension table.
// Unmapped inputs resolve to UnknownType.
func Classify(data []byte, filename string) string {
	detected := mimetype.Detect(data)
	for _, allowed := range allowedTypes {
		// Is matches aliases too (e.g. video/avi vs video/x-msvideo).
		if detected.Is(allowed) {
			return allowed
		}
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}

	return UnknownType
}
