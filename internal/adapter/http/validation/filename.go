package validation

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

const maxFilenameLength = 255

// ErrInvalidFilename is returned for names that cannot be used as a job name.
var ErrInvalidFilename = errors.New("invalid filename")

// allowedExtensions lists the containers the transform tool accepts.
var allowedExtensions = map[string]bool{
	".mp4": true,
	".avi": true,
	".mkv": true,
}

// CleanUploadName turns a client supplied filename into a job name. Any
// directory part is dropped and characters unsafe in paths, headers or logs
// become underscores. The extension must be one of mp4, avi or mkv.
func CleanUploadName(name string) (string, error) {
	// clients on Windows send backslash separated paths
	name = name[strings.LastIndexAny(name, `/\`)+1:]

	name = strings.Map(func(r rune) rune {
		if unsafeRune(r) {
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return "", fmt.Errorf("%w: %q", ErrDisallowedFileType, ext)
	}
	base := strings.TrimSpace(strings.TrimSuffix(name, filepath.Ext(name)))
	if strings.Trim(base, "_.") == "" {
		return "", fmt.Errorf("%w: empty name", ErrInvalidFilename)
	}

	return truncate(base, maxFilenameLength-len(ext)) + ext, nil
}

// AllowedExtension reports whether name carries an accepted extension.
func AllowedExtension(name string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(name))]
}

func unsafeRune(r rune) bool {
	if r < 32 || r == 127 || r == utf8.RuneError {
		return true
	}
	switch r {
	case '"', '\\', '/', ':', '*', '?', '<', '>', '|':
		return true
	}
	return false
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
