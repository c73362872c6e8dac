package data

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// compressed suffixes understood by Open
var decoders = map[string]func(io.Reader) (io.Reader, error){
	".xz":   func(r io.Reader) (io.Reader, error) { return xz.NewReader(r) },
	".lzma": func(r io.Reader) (io.Reader, error) { return lzma.NewReader(r) },
	".gz":   func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) },
}

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error { return r.close() }

// Open opens path for reading, transparently decompressing .xz, .lzma and
// .gz files.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	dec, ok := decoders[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return f, nil
	}
	r, err := dec(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("decompress %s: %w", path, err)
	}
	return readCloser{Reader: r, close: f.Close}, nil
}

// baseName is the file name with compression and .csv suffixes removed.
func baseName(path string) string {
	name := filepath.Base(path)
	for {
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := decoders[ext]; !ok && ext != ".csv" {
			return name
		}
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
}

// Create creates path for writing, compressing like Open decompresses.
// Files are written to a .part sibling and renamed on Close.
func Create(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return nil, err
	}

	var w io.WriteCloser = nopCloser{f}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xz":
		w, err = xz.NewWriter(f)
	case ".lzma":
		w, err = lzma.NewWriter(f)
	case ".gz":
		w = gzip.NewWriter(f)
	}
	if err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return nil, err
	}
	return &fileWriter{WriteCloser: w, f: f, tmp: tmp, dst: path}, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

type fileWriter struct {
	io.WriteCloser
	f        *os.File
	tmp, dst string
}

func (w *fileWriter) Close() error {
	encErr := w.WriteCloser.Close()
	closeErr := w.f.Close()
	if encErr != nil {
		_ = os.Remove(w.tmp)
		return encErr
	}
	if closeErr != nil {
		_ = os.Remove(w.tmp)
		return closeErr
	}
	return os.Rename(w.tmp, w.dst)
}
