package results

import (
	"path/filepath"
	"strings"
)

// MaxFileSize is the upload ceiling for result files, also applied to fetched
// remote artifacts.
const MaxFileSize int64 = 50 << 20

// allowedExtensions lists the result file extensions accepted by SetFile.
var allowedExtensions = map[string]bool{
	"pdf":  true,
	"doc":  true,
	"docx": true,
	"jpg":  true,
	"jpeg": true,
	"png":  true,
}

// Blob is a locally selected file held in memory.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the byte length of the blob.
func (b *Blob) Size() int64 {
	if b == nil {
		return 0
	}
	return int64(len(b.Data))
}

// Extension returns the lower-cased extension of the blob name without the dot.
func (b *Blob) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(b.Name)), ".")
}

// AllowedExtension reports whether ext (with or without a leading dot) may be uploaded.
func AllowedExtension(ext string) bool {
	return allowedExtensions[strings.TrimPrefix(strings.ToLower(ext), ".")]
}
