package fetcher

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

const maxBaseNameLen = 80

// DownloadDir stores fetched files for the lifetime of a run. It is shared
// by concurrent runs; file names carry the run ID and candidate index so
// two runs never write the same file.
type DownloadDir struct {
	Dir string
}

// Save writes data to a new file named after the run, candidate and URL,
// and returns its path. An existing file is never overwritten.
func (d DownloadDir) Save(runID string, candidate int, rawURL string, data []byte) (string, error) {
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", eris.Wrap(err, "download: create dir")
	}

	base := fmt.Sprintf("%s-%d-%s", sanitize(runID), candidate, baseName(rawURL))
	for i := 0; ; i++ {
		name := base
		if i > 0 {
			ext := filepath.Ext(base)
			name = fmt.Sprintf("%s.%d%s", strings.TrimSuffix(base, ext), i, ext)
		}
		p := filepath.Join(d.Dir, name)
		file, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", eris.Wrap(err, "download: create file")
		}
		if _, err := file.Write(data); err != nil {
			_ = file.Close()
			_ = os.Remove(p)
			return "", eris.Wrap(err, "download: write file")
		}
		if err := file.Close(); err != nil {
			return "", eris.Wrap(err, "download: close file")
		}
		return p, nil
	}
}

// Remove deletes a file written by Save. Missing files are ignored.
func (d DownloadDir) Remove(p string) error {
	if p == "" {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrap(err, "download: remove file")
	}
	return nil
}

func baseName(rawURL string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "." || name == "/" {
		name = ""
	}
	name = sanitize(name)
	if name == "" {
		name = "download"
	}
	if len(name) > maxBaseNameLen {
		ext := filepath.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:maxBaseNameLen-len(ext)] + ext
	}
	return name
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
