package extract

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Decoder turns raw document bytes into plain text. The registry below is
// the extension point for richer formats (docx, xlsx); the core ships the
// plain-text family only.
type Decoder func(data []byte) (string, error)

var decoders = map[string]Decoder{
	".txt":  decodeUTF8,
	".md":   decodeUTF8,
	".json": decodeUTF8,
	".csv":  decodeUTF8,
}

// Register installs a decoder for a file extension (".docx"). Later
// registrations win.
func Register(ext string, d Decoder) {
	decoders[strings.ToLower(ext)] = d
}

// Text decodes document bytes to text based on the file name's extension.
// Unknown extensions fall back to UTF-8: try to read it as text, reject it
// if that fails.
func Text(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	d, ok := decoders[ext]
	if !ok {
		d = decodeUTF8
	}
	return d(data)
}

func decodeUTF8(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("extract: content is not valid UTF-8 text")
	}
	return string(data), nil
}
