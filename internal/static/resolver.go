// Package static resolves request paths against a file tree and builds
// complete responses: try files first, report a miss so the caller can
// fall through to the application handler.
package static

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"example.com/tryserve/internal/cache"
	"example.com/tryserve/internal/config"
	"example.com/tryserve/internal/logger"
)

// Resolver maps URL paths to files under a root directory and writes
// the response for any path it can satisfy.
type Resolver struct {
	cfg   *config.StaticConfig
	log   *logger.Logger
	mime  *MimeResolver
	store FileStore
	cache *cache.Cache // nil when memory caching is disabled
	root  string
}

// NewResolver creates a Resolver. cache may be nil to disable content
// caching; store is typically OSFileStore.
func NewResolver(cfg *config.StaticConfig, store FileStore, c *cache.Cache, lg *logger.Logger) *Resolver {
	if lg == nil {
		lg = logger.NewDiscardLogger()
	}
	return &Resolver{
		cfg:   cfg,
		log:   lg,
		mime:  NewMimeResolver(cfg.MimeTypes),
		store: store,
		cache: c,
		root:  filepath.Clean(cfg.FilesDir),
	}
}

// resolved identifies the file answering a request path.
type resolved struct {
	path            string // filesystem path
	info            FileInfo
	isIndexFallback bool
}

// Serve attempts to answer r from the file tree. It reports whether a
// response was written; false means the request did not resolve to a
// file (or resolution failed, which is logged and treated the same) and
// the caller should invoke the application handler. Serve never touches
// w when it returns false.
func (rs *Resolver) Serve(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}

	pathname := r.URL.Path
	if pathname != "/" {
		pathname = strings.TrimSuffix(pathname, "/")
	}

	asset, ok := rs.resolve(pathname)
	if !ok {
		return false
	}

	h := make(http.Header)

	// Conditional check on modification time. The comparison direction
	// (mtime after the client's timestamp means "not modified") is kept
	// from the system this replaces and is pinned by tests.
	hasModTime := !asset.info.ModTime.IsZero()
	if hasModTime {
		h.Set("Last-Modified", asset.info.ModTime.UTC().Format(http.TimeFormat))
		if ims := r.Header.Get("If-Modified-Since"); ims != "" {
			if t, err := http.ParseTime(ims); err == nil && asset.info.ModTime.After(t) {
				writeResponse(w, h, http.StatusNotModified, nil)
				return true
			}
		}
	}

	size := asset.info.Size
	start, length := int64(0), size
	partial := false
	if !asset.isIndexFallback {
		h.Set("Accept-Ranges", "bytes")
		if rng := r.Header.Get("Range"); rng != "" {
			start, length = parseRange(rng, size, rs.cfg.ByteRangeChunkSize)
			partial = start > 0 || length < size
		}
	}

	h.Set("Content-Length", strconv.FormatInt(length, 10))
	if partial {
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, start+length-1, size))
	}

	// Content acquisition. HEAD computes headers only and reads nothing.
	var body, full []byte
	if r.Method == http.MethodGet {
		var err error
		body, full, err = rs.acquire(asset, pathname, r.URL.RawQuery, start, length)
		if err != nil {
			rs.log.Warn("static: read failed", logger.LogFields{
				"path":  asset.path,
				"error": err.Error(),
			})
			return false
		}
	}

	// Conditional check on the entity tag. Skipped entirely on the
	// common path (known mtime, no If-None-Match) to avoid hashing.
	inm := r.Header.Get("If-None-Match")
	if !hasModTime || inm != "" {
		tag, err := rs.entityTag(asset, full, hasModTime)
		if err != nil {
			rs.log.Warn("static: fingerprint read failed", logger.LogFields{
				"path":  asset.path,
				"error": err.Error(),
			})
			return false
		}
		h.Set("ETag", tag)
		if inm != "" && etagMatches(inm, tag) {
			writeResponse(w, h, http.StatusNotModified, nil)
			return true
		}
	}

	// Extension-bearing assets are treated as immutable per deployment;
	// index documents must always revalidate.
	ext := strings.ToLower(filepath.Ext(asset.path))
	if _, known := rs.mime.Lookup(ext); known && !asset.isIndexFallback {
		h.Set("Cache-Control", "public, max-age=31536000")
	} else {
		h.Set("Cache-Control", "no-cache")
	}
	h.Set("Content-Type", rs.mime.Type(ext))

	switch {
	case r.Method == http.MethodHead:
		// HEAD is always 204 and never ranged, even when the range math
		// above shaped Content-Length.
		if !rs.writeNoContent(w, h) {
			writeResponse(w, h, http.StatusNoContent, nil)
		}
	case partial:
		writeResponse(w, h, http.StatusPartialContent, body)
	default:
		writeResponse(w, h, http.StatusOK, body)
	}
	return true
}

// resolve maps a normalized URL path to a file, trying the directory
// index when the path names a directory. Stat failures other than
// not-found are logged and reported as a miss; the static layer never
// surfaces them to the client.
func (rs *Resolver) resolve(pathname string) (resolved, bool) {
	candidate := filepath.Join(rs.root, filepath.FromSlash(pathname))
	if candidate != rs.root && !strings.HasPrefix(candidate, rs.root+string(filepath.Separator)) {
		rs.log.Warn("static: path escapes files dir", logger.LogFields{
			"path": pathname,
			"root": rs.root,
		})
		return resolved{}, false
	}

	info, err := rs.store.Stat(candidate)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			rs.log.Warn("static: stat failed", logger.LogFields{
				"path":  candidate,
				"error": err.Error(),
			})
		}
		return resolved{}, false
	}

	if info.IsDir {
		candidate = filepath.Join(candidate, rs.cfg.IndexName)
		info, err = rs.store.Stat(candidate)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				rs.log.Warn("static: stat failed", logger.LogFields{
					"path":  candidate,
					"error": err.Error(),
				})
			}
			return resolved{}, false
		}
		if info.IsDir {
			return resolved{}, false
		}
		return resolved{path: candidate, info: info, isIndexFallback: true}, true
	}

	return resolved{path: candidate, info: info}, true
}

// acquire returns the bytes to transmit ([start, start+length)) and,
// when a whole-file read happened along the way, the full content.
//
// With the memory cache enabled the whole file is read once into the
// cache and sliced per request; with it disabled only the requested
// window is read, unless the store cannot do positional reads, in which
// case the whole file is read (portability fallback for restricted
// stores).
func (rs *Resolver) acquire(asset resolved, pathname, version string, start, length int64) (body, full []byte, err error) {
	if rs.cache != nil && !asset.isIndexFallback {
		data, ok := rs.cache.Get(pathname, version)
		if !ok {
			data, err = rs.store.ReadFile(asset.path)
			if err != nil {
				return nil, nil, err
			}
			rs.cache.Put(pathname, version, data)
			rs.log.Debug("static: cached file", logger.LogFields{
				"path": pathname,
				"size": humanize.Bytes(uint64(len(data))),
			})
		}
		return sliceWindow(data, start, length), data, nil
	}

	body, err = rs.store.ReadRange(asset.path, start, length)
	if errors.Is(err, ErrRangeUnsupported) {
		full, err = rs.store.ReadFile(asset.path)
		if err != nil {
			return nil, nil, err
		}
		return sliceWindow(full, start, length), full, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return body, nil, nil
}

// entityTag computes the fingerprint for a response. Full content, when
// already in hand, hashes directly; otherwise metadata serves when a
// modification time exists, and as a last resort (HEAD against a store
// without mtimes) the file is read once for hashing.
func (rs *Resolver) entityTag(asset resolved, full []byte, hasModTime bool) (string, error) {
	switch {
	case full != nil:
		return ContentTag(full), nil
	case hasModTime:
		return MetadataTag(asset.info.Size, asset.info.ModTime), nil
	default:
		data, err := rs.store.ReadFile(asset.path)
		if err != nil {
			return "", err
		}
		return ContentTag(data), nil
	}
}

// parseRange interprets a "bytes=start-end" header permissively:
// unparsable offsets default rather than reject, a missing end is
// capped at chunk bytes past start, and out-of-bounds offsets clamp.
// There is no unsatisfiable-range outcome.
func parseRange(spec string, size, chunk int64) (start, length int64) {
	if size <= 0 {
		return 0, 0
	}

	start = 0
	end := size - 1
	if v, ok := strings.CutPrefix(spec, "bytes="); ok {
		first, rest, _ := strings.Cut(v, "-")
		if n, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64); err == nil && n > 0 {
			start = n
		}
		if start > size-1 {
			start = size - 1
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(rest), 10, 64); err == nil && n >= 0 {
			end = n
		} else {
			end = min(start+chunk, size) - 1
		}
		if end > size-1 {
			end = size - 1
		}
		if end < start {
			end = start
		}
	}
	return start, end - start + 1
}

func sliceWindow(data []byte, start, length int64) []byte {
	end := start + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	if start > end {
		start = end
	}
	return data[start:end]
}

// etagMatches reports whether the If-None-Match header value names tag.
func etagMatches(headerValue, tag string) bool {
	for _, candidate := range strings.Split(headerValue, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == tag || candidate == "*" {
			return true
		}
	}
	return false
}

func writeResponse(w http.ResponseWriter, h http.Header, status int, body []byte) {
	dst := w.Header()
	for name, values := range h {
		dst[name] = values
	}
	w.WriteHeader(status)
	if len(body) > 0 {
		w.Write(body)
	}
}

// StatusRecorder is implemented by response writers that track the
// status code for access logging. Hand-serialized responses bypass
// WriteHeader, so the resolver reports the code through this instead.
type StatusRecorder interface {
	RecordStatus(code int)
}

// writeNoContent serializes a 204 response directly on the hijacked
// connection. net/http drops Content-Length from 204 responses at
// write time, but a HEAD answer must carry the length the matching GET
// would have, so the status line and headers are written by hand.
// Returns false when the connection cannot be taken over (for example
// under httptest), in which case the caller writes normally.
func (rs *Resolver) writeNoContent(w http.ResponseWriter, h http.Header) bool {
	conn, buf, err := http.NewResponseController(w).Hijack()
	if err != nil {
		return false
	}
	defer conn.Close()

	// Headers already placed on the writer (CORS, middleware) would be
	// lost by the takeover, so fold them in under the staged set.
	merged := w.Header().Clone()
	for name, values := range h {
		merged[name] = values
	}
	merged.Set("Date", time.Now().UTC().Format(http.TimeFormat))
	merged.Set("Connection", "close")

	if sr, ok := w.(StatusRecorder); ok {
		sr.RecordStatus(http.StatusNoContent)
	}

	buf.WriteString("HTTP/1.1 204 No Content\r\n")
	merged.Write(buf)
	buf.WriteString("\r\n")
	if err := buf.Flush(); err != nil {
		rs.log.Error("writing no-content response failed", logger.LogFields{"error": err.Error()})
	}
	return true
}
