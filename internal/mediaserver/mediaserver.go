// Package mediaserver implements the range-capable file server (C10): it
// resolves a logical path against the configured watch roots and streams
// the match back, honoring a single HTTP Range header.
package mediaserver

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tassa-yoniso-manasi-karoto/atci/internal/config"
	"github.com/tassa-yoniso-manasi-karoto/atci/internal/pathmodel"
)

var contentTypeByExt = map[string]string{
	"mp4": "video/mp4",
	"mov": "video/quicktime",
	"mp3": "audio/mpeg",
	"txt": "text/plain",
	"mkv": "video/x-matroska",
	"ts":  "video/mp2t",
}

type Handler struct {
	Config *config.Provider
	Log    zerolog.Logger
}

func New(cfg *config.Provider, log zerolog.Logger) *Handler {
	return &Handler{Config: cfg, Log: log}
}

// ServeHTTP implements GET /files/<rest>.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/files/")
	decoded, err := url.PathUnescape(rest)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	path := h.resolve(decoded)
	if path == "" {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		http.NotFound(w, r)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	ctype, ok := contentTypeByExt[ext]
	if !ok {
		ctype = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Accept-Ranges", "bytes")

	serveRange(w, r, f, info.Size())
}

// serveRange implements the single-range subset of RFC 7233 this system
// promises: a-b, a-, and -n forms, with an exact whole-file range served
// as 200 rather than 206, and anything invalid or unsatisfiable falling
// through to a full 200 response.
func serveRange(w http.ResponseWriter, r *http.Request, f io.ReadSeeker, size int64) {
	start, end, ok := parseRange(r.Header.Get("Range"), size)
	if !ok || (start == 0 && end == size-1) {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, f)
		return
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		http.Error(w, "seek failed", http.StatusInternalServerError)
		return
	}

	length := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)
	io.CopyN(w, f, length)
}

// parseRange returns the inclusive [start, end] byte range for a single
// "bytes=..." Range header, or ok=false if absent, malformed, or
// unsatisfiable against size.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	if header == "" || size <= 0 {
		return 0, 0, false
	}
	spec := strings.TrimPrefix(header, "bytes=")
	if spec == header {
		return 0, 0, false
	}
	if strings.Contains(spec, ",") {
		return 0, 0, false // multi-range not supported; fall through
	}

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return 0, 0, false
	}
	aStr, bStr := spec[:dash], spec[dash+1:]

	switch {
	case aStr == "" && bStr != "":
		n, err := strconv.ParseInt(bStr, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			return 0, 0, false
		}
		return size - n, size - 1, true

	case aStr != "" && bStr == "":
		a, err := strconv.ParseInt(aStr, 10, 64)
		if err != nil || a < 0 || a >= size {
			return 0, 0, false
		}
		return a, size - 1, true

	case aStr != "" && bStr != "":
		a, err1 := strconv.ParseInt(aStr, 10, 64)
		b, err2 := strconv.ParseInt(bStr, 10, 64)
		if err1 != nil || err2 != nil || a < 0 || a > b || a >= size {
			return 0, 0, false
		}
		if b >= size {
			b = size - 1
		}
		return a, b, true
	}
	return 0, 0, false
}

// resolve searches every watch root, in configured order, for a file
// matching rest verbatim, then (if rest has no extension) with each
// allowed extension appended.
func (h *Handler) resolve(rest string) string {
	rest = strings.TrimPrefix(rest, "/")
	snap := h.Config.Snapshot()

	for _, root := range snap.WatchDirectories {
		candidate := filepath.Join(root, rest)
		if !isWithin(root, candidate) {
			continue
		}
		if fileExists(candidate) {
			return candidate
		}
		if filepath.Ext(candidate) == "" {
			for _, ext := range pathmodel.AllowedExtensions {
				withExt := candidate + "." + ext
				if fileExists(withExt) {
					return withExt
				}
			}
		}
	}
	return ""
}

func isWithin(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
