package constants

import "strings"

// AllowedPhotoExtensions holds the file extensions accepted for rug
// photos, both on upload and in the field-agent spool directory.
var AllowedPhotoExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"heic": {},
}

// PhotoContentTypes maps normalized extensions to the content type
// stored alongside the photo.
var PhotoContentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"heic": "image/heic",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// ExtensionForContentType returns the canonical extension for a photo
// content type. Unknown types fall back to "bin".
func ExtensionForContentType(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/heic":
		return "heic"
	}
	return "bin"
}
