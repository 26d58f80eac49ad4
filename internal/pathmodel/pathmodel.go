// Package pathmodel holds the pure, allocation-light functions that map a
// video file to its sidecars and parse multi-part filenames. Every
// function here is side-effect free; callers do the stat()-ing.
package pathmodel

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// AllowedExtensions is the ordered allow-list of video extensions this
// system recognizes, tried in this order wherever an extension must be
// guessed (e.g. FindVideo).
var AllowedExtensions = []string{"mp4", "mov", "mkv", "ts"}

func isAllowedExt(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// Sidecar replaces a video's extension with suffix (which should include
// its own leading dot, e.g. ".txt" or ".meta").
func Sidecar(videoPath, suffix string) string {
	ext := filepath.Ext(videoPath)
	return strings.TrimSuffix(videoPath, ext) + suffix
}

// FindVideo looks for logicalName with each allowed extension, in order,
// directly under root. Each extension is tried in lower case, then in
// upper case; mixed-case extensions (e.g. ".Mp4") are not matched. The
// stem is matched verbatim. Returns "" if none exist according to exists.
func FindVideo(root, logicalName string, exists func(string) bool) string {
	for _, ext := range AllowedExtensions {
		candidate := filepath.Join(root, logicalName+"."+ext)
		if exists(candidate) {
			return candidate
		}
		upper := filepath.Join(root, logicalName+"."+strings.ToUpper(ext))
		if exists(upper) {
			return upper
		}
	}
	return ""
}

var partPattern = regexp.MustCompile(`^(.*)\.part(\d+)$`)

// ParsePart matches "<base>.part<n>.<ext>" at the end of the file name, n
// >= 1 and base non-empty. A stem that IS exactly "partN" (no base) does
// not match. ".part0" does not match (n must be >= 1). If the stem
// contains more than one ".partN." occurrence, only the last one counts,
// since the regex anchors to the end of the stem.
func ParsePart(path string) (base string, n int, ext string, ok bool) {
	ext = strings.TrimPrefix(filepath.Ext(path), ".")
	if !isAllowedExt(ext) {
		return "", 0, "", false
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	m := partPattern.FindStringSubmatch(stem)
	if m == nil {
		return "", 0, "", false
	}
	base = m[1]
	if base == "" {
		return "", 0, "", false
	}
	num, err := strconv.Atoi(m[2])
	if err != nil || num < 1 {
		return "", 0, "", false
	}
	return base, num, ext, true
}

// FormatPart is the inverse of ParsePart, used by the round-trip property
// and to build expected part filenames.
func FormatPart(base string, n int, ext string) string {
	return fmt.Sprintf("%s.part%d.%s", base, n, ext)
}

// MasterPaths returns the video, transcript, and meta paths for a base
// name given its directory and extension.
func MasterPaths(dir, base, ext string) (video, txt, meta string) {
	stem := filepath.Join(dir, base)
	return stem + "." + ext, stem + ".txt", stem + ".meta"
}

// IsAllowedExtension reports whether ext (with or without a leading dot)
// is one of the recognized video extensions.
func IsAllowedExtension(ext string) bool {
	return isAllowedExt(ext)
}
