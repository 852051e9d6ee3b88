package static

import "strings"

// defaultMimeTypes maps file extensions to content types. An extension
// present here also marks the asset as long-term cacheable; unknown
// extensions are served as application/octet-stream and revalidated on
// every request.
var defaultMimeTypes = map[string]string{
	".aac":   "audio/aac",
	".avif":  "image/avif",
	".avi":   "video/x-msvideo",
	".bin":   "application/octet-stream",
	".bmp":   "image/bmp",
	".css":   "text/css",
	".csv":   "text/csv",
	".eot":   "application/vnd.ms-fontobject",
	".gif":   "image/gif",
	".gz":    "application/gzip",
	".htm":   "text/html",
	".html":  "text/html",
	".ico":   "image/vnd.microsoft.icon",
	".jpeg":  "image/jpeg",
	".jpg":   "image/jpeg",
	".js":    "text/javascript",
	".json":  "application/json",
	".map":   "application/json",
	".md":    "text/markdown",
	".mjs":   "text/javascript",
	".mp3":   "audio/mpeg",
	".mp4":   "video/mp4",
	".oga":   "audio/ogg",
	".ogv":   "video/ogg",
	".opus":  "audio/opus",
	".otf":   "font/otf",
	".pdf":   "application/pdf",
	".png":   "image/png",
	".svg":   "image/svg+xml",
	".tar":   "application/x-tar",
	".tif":   "image/tiff",
	".tiff":  "image/tiff",
	".ttf":   "font/ttf",
	".txt":   "text/plain",
	".wasm":  "application/wasm",
	".wav":   "audio/wav",
	".weba":  "audio/webm",
	".webm":  "video/webm",
	".webp":  "image/webp",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".xhtml": "application/xhtml+xml",
	".xml":   "application/xml",
	".zip":   "application/zip",
}

// DefaultMimeType is served for extensions with no table entry.
const DefaultMimeType = "application/octet-stream"

// MimeResolver answers content-type lookups by file extension.
type MimeResolver struct {
	types map[string]string
}

// NewMimeResolver builds a resolver from the built-in table merged with
// the configured overrides. Override keys may be given with or without
// the leading dot and in any case.
func NewMimeResolver(overrides map[string]string) *MimeResolver {
	types := make(map[string]string, len(defaultMimeTypes)+len(overrides))
	for ext, typ := range defaultMimeTypes {
		types[ext] = typ
	}
	for ext, typ := range overrides {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		types[ext] = typ
	}
	return &MimeResolver{types: types}
}

// Lookup returns the content type for an extension (leading dot,
// lowercase) and whether the extension is known.
func (m *MimeResolver) Lookup(ext string) (string, bool) {
	typ, ok := m.types[ext]
	return typ, ok
}

// Type returns the content type for an extension, falling back to
// DefaultMimeType.
func (m *MimeResolver) Type(ext string) string {
	if typ, ok := m.types[ext]; ok {
		return typ
	}
	return DefaultMimeType
}
