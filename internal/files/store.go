// Package files manages the on-disk layout: uploaded source PDFs and the
// generated summary/quiz files served by the download endpoint.
package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/text/unicode/norm"
)

// ErrTooLarge is returned when an upload exceeds the configured limit.
var ErrTooLarge = errors.New("file too large")

// Store owns the upload and processed directories.
type Store struct {
	fs           afero.Fs
	uploadDir    string
	processedDir string
	maxBytes     int64
}

// New creates the directories if needed. maxBytes <= 0 disables the size check.
func New(fs afero.Fs, uploadDir, processedDir string, maxBytes int64) (*Store, error) {
	for _, dir := range []string{uploadDir, processedDir} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return &Store{fs: fs, uploadDir: uploadDir, processedDir: processedDir, maxBytes: maxBytes}, nil
}

// Fs exposes the underlying filesystem so extractors read through the same view.
func (s *Store) Fs() afero.Fs { return s.fs }

// SaveUpload writes r to {uploadDir}/{id}_{filename} and returns the path.
// A partially written file is removed on error.
func (s *Store) SaveUpload(id, filename string, r io.Reader) (string, error) {
	path := filepath.Join(s.uploadDir, id+"_"+filename)
	out, err := s.fs.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		s.fs.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", fmt.Errorf("write upload file: %w", err)
	}
	return path, nil
}

// WriteGenerated stores data under name in the processed directory. The
// content is written to a temp file first and renamed into place so
// readers never observe a partial file.
func (s *Store) WriteGenerated(name string, data []byte) error {
	name = filepath.Base(name)
	tmp := filepath.Join(s.processedDir, "."+name+"."+uuid.NewString()+".tmp")
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp, filepath.Join(s.processedDir, name)); err != nil {
		s.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// OpenGenerated opens a generated file for reading. A missing file is
// reported with an error wrapping os.ErrNotExist.
func (s *Store) OpenGenerated(name string) (afero.File, error) {
	f, err := s.fs.Open(filepath.Join(s.processedDir, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return f, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces a client-supplied name to a safe ASCII file name:
// accents are folded, path separators and whitespace become "_", anything
// outside [A-Za-z0-9_.-] is dropped and leading/trailing dots and
// underscores are trimmed. The result may be empty.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if r < unicode.MaxASCII {
			b.WriteRune(r)
		}
	}
	s := b.String()
	s = strings.NewReplacer("/", " ", "\\", " ").Replace(s)
	s = strings.Join(strings.Fields(s), "_")
	s = unsafeChars.ReplaceAllString(s, "")
	return strings.Trim(s, "._")
}

// IsNotExist reports whether err means the file does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
