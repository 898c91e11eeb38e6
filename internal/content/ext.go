package content

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

const defaultExt = ".jpg"

var (
	imageExts = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true,
		".gif": true, ".webp": true, ".bmp": true,
	}

	mimeToExt = map[string]string{
		"image/png":  ".png",
		"image/jpeg": ".jpg",
		"image/gif":  ".gif",
		"image/webp": ".webp",
		"image/bmp":  ".bmp",
	}
)

// inferExt picks the stored extension: the hint's when it is a known image
// extension, else the sniffed content type's, else .jpg.
func inferExt(hint string, data []byte) string {
	if hint != "" {
		p := hint
		if u, err := url.Parse(hint); err == nil && u.Path != "" {
			p = u.Path
		}
		ext := strings.ToLower(path.Ext(p))
		if imageExts[ext] {
			return ext
		}
	}
	detected := http.DetectContentType(data)
	if ext, ok := mimeToExt[strings.Split(detected, ";")[0]]; ok {
		return ext
	}
	return defaultExt
}
