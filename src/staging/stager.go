package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"
)

// DefaultPrefix is prepended to every staged file name.
const DefaultPrefix = "temp_"

// Upload is one user-supplied file.
type Upload struct {
	Name    string
	Content io.Reader
}

// Unreadable stands in for a file that could not be opened. Staging it
// reports err through the usual per-file warning.
func Unreadable(name string, err error) Upload {
	return Upload{Name: name, Content: errReader{err: err}}
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

// StagingError names the upload that could not be persisted.
type StagingError struct {
	File string
	Err  error
}

func (e *StagingError) Error() string {
	return fmt.Sprintf("Error processing image %s: %v", e.File, e.Err)
}

func (e *StagingError) Unwrap() error { return e.Err }

// StageResult lists staged paths in input order plus one warning per
// upload that was skipped.
type StageResult struct {
	Paths    []string
	Warnings []*StagingError
}

// Stager writes uploads to a scratch directory so tools can refer to them by
// path. Files are never cleaned up; the directory is expected to be a temp
// location. Two uploads with the same name map to the same path and the
// later one wins.
type Stager struct {
	Dir    string // defaults to os.TempDir()
	Prefix string // defaults to DefaultPrefix
}

func NewStager(dir string) *Stager {
	return &Stager{Dir: dir, Prefix: DefaultPrefix}
}

func (s *Stager) dir() string {
	if s == nil || strings.TrimSpace(s.Dir) == "" {
		return os.TempDir()
	}
	return s.Dir
}

func (s *Stager) prefix() string {
	if s == nil || s.Prefix == "" {
		return DefaultPrefix
	}
	return s.Prefix
}

// PathFor returns where an upload with the given name is staged.
func (s *Stager) PathFor(name string) string {
	return filepath.Join(s.dir(), s.prefix()+sanitizeName(name))
}

// Stage persists every upload in order. A failing upload is skipped and
// reported; the rest are still processed. Once ctx is done the remaining
// uploads are reported as skipped.
func (s *Stager) Stage(ctx context.Context, uploads []Upload) StageResult {
	var res StageResult
	if len(uploads) == 0 {
		return res
	}

	if err := os.MkdirAll(s.dir(), 0o755); err != nil {
		for _, up := range uploads {
			res.Warnings = append(res.Warnings, &StagingError{File: up.Name, Err: err})
		}
		klog.Warningf("staging dir %s: %v", s.dir(), err)
		return res
	}

	for _, up := range uploads {
		if err := ctx.Err(); err != nil {
			res.Warnings = append(res.Warnings, &StagingError{File: up.Name, Err: err})
			continue
		}
		path, err := s.put(up)
		if err != nil {
			serr := &StagingError{File: up.Name, Err: err}
			klog.Warning(serr.Error())
			res.Warnings = append(res.Warnings, serr)
			continue
		}
		klog.V(4).Infof("staged %s at %s", up.Name, path)
		res.Paths = append(res.Paths, path)
	}
	return res
}

// StageAll stages designs and then competitor designs, returning design
// paths followed by competitor paths.
func (s *Stager) StageAll(ctx context.Context, designs, competitors []Upload) StageResult {
	res := s.Stage(ctx, designs)
	if len(competitors) == 0 {
		return res
	}
	more := s.Stage(ctx, competitors)
	res.Paths = append(res.Paths, more.Paths...)
	res.Warnings = append(res.Warnings, more.Warnings...)
	return res
}

func (s *Stager) put(up Upload) (string, error) {
	if up.Content == nil {
		return "", fmt.Errorf("no content")
	}
	if seeker, ok := up.Content.(io.Seeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return "", err
		}
	}

	path := s.PathFor(up.Name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, up.Content); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// sanitizeName keeps the upload name inside the staging directory.
func sanitizeName(n string) string {
	n = strings.TrimSpace(n)
	if n == "" || n == "." || n == ".." {
		return "upload"
	}
	out := make([]rune, 0, len(n))
	for _, r := range n {
		if r == '/' || r == '\\' || r == 0 {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
