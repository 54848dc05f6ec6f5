// Package export writes a view's data and image to files: a delimited text
// table of the selected range and a static PNG of the chart.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/banshee-data/welldash/internal/fsutil"
	"github.com/banshee-data/welldash/internal/monitoring"
)

var logf = monitoring.Component("export")

// ErrInvalidFilename is returned for names that would leave the export
// directory.
var ErrInvalidFilename = errors.New("export: invalid filename")

// Sink receives finished export files, the way a browser receives a
// download.
type Sink interface {
	// Save stores data under name and returns where it went.
	Save(name string, data []byte) (string, error)
}

// FileSink saves exports into Dir on a FileSystem.
type FileSink struct {
	FS  fsutil.FileSystem
	Dir string
}

// NewFileSink returns a sink writing to dir on the host filesystem.
func NewFileSink(dir string) *FileSink {
	return &FileSink{FS: fsutil.OSFileSystem{}, Dir: dir}
}

// Save writes data to Dir/name, creating Dir when needed. Only the last
// path element of name is used.
func (s *FileSink) Save(name string, data []byte) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == ".." || base == string(filepath.Separator) || strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	dir := filepath.Clean(s.Dir)
	if err := s.FS.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, base)
	if rel, err := filepath.Rel(dir, path); err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	if err := s.FS.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	logf("saved %s (%d bytes)", path, len(data))
	return path, nil
}

// sanitize makes a filename-safe token from an arbitrary identifier: runs
// of anything outside [A-Za-z0-9._-] become one underscore.
func sanitize(s string) string {
	const maxLen = 64
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}
