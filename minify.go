// Package minify relates mimetypes and file extensions to minifiers. The tag-renaming markup minifier lives in the xml subpackage and the SVD schema minifier in the svd subpackage.
package minify

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/tdewolff/parse/v2"
)

var (
	// ErrNotExist is returned when no minifier exists for a given mimetype or file extension.
	ErrNotExist = errors.New("minifier does not exist for mimetype")

	// ErrNoExtension is returned when a filename has no extension to infer its mimetype from.
	ErrNoExtension = errors.New("file has no extension")

	// ErrRead is returned when the source file could not be read.
	ErrRead = errors.New("could not read file")
)

////////////////////////////////////////////////////////////////

// MinifierFunc is a function that implements Minifier.
type MinifierFunc func(*M, io.Writer, io.Reader, map[string]string) error

// Minify calls f(m, w, r, params)
func (f MinifierFunc) Minify(m *M, w io.Writer, r io.Reader, params map[string]string) error {
	return f(m, w, r, params)
}

// Minifier is the interface for minifiers.
// The *M parameter is used for minifying embedded resources.
type Minifier interface {
	Minify(*M, io.Writer, io.Reader, map[string]string) error
}

////////////////////////////////////////////////////////////////

type patternMinifier struct {
	pattern *regexp.Regexp
	Minifier
}

// M holds a map of mimetype => function and file extension => mimetype.
type M struct {
	mutex   sync.RWMutex
	literal map[string]Minifier
	pattern []patternMinifier
	ext     map[string]string
}

// New returns a new M.
func New() *M {
	return &M{
		literal: map[string]Minifier{},
		pattern: []patternMinifier{},
		ext:     map[string]string{},
	}
}

// AddFunc adds a minify function to the mimetype => function map (unsafe for concurrent use).
func (m *M) AddFunc(mimetype string, minifier MinifierFunc) {
	m.mutex.Lock()
	m.literal[mimetype] = minifier
	m.mutex.Unlock()
}

// Add adds a minifier to the mimetype => function map (unsafe for concurrent use).
func (m *M) Add(mimetype string, minifier Minifier) {
	m.mutex.Lock()
	m.literal[mimetype] = minifier
	m.mutex.Unlock()
}

// AddFuncRegexp adds a minify function to the mimetype => function map (unsafe for concurrent use).
func (m *M) AddFuncRegexp(pattern *regexp.Regexp, minifier MinifierFunc) {
	m.mutex.Lock()
	m.pattern = append(m.pattern, patternMinifier{pattern, minifier})
	m.mutex.Unlock()
}

// AddRegexp adds a minifier to the mimetype => function map (unsafe for concurrent use).
func (m *M) AddRegexp(pattern *regexp.Regexp, minifier Minifier) {
	m.mutex.Lock()
	m.pattern = append(m.pattern, patternMinifier{pattern, minifier})
	m.mutex.Unlock()
}

// AddExt maps a file extension (without the leading dot) to a mimetype.
func (m *M) AddExt(ext, mimetype string) {
	m.mutex.Lock()
	m.ext[strings.TrimPrefix(ext, ".")] = mimetype
	m.mutex.Unlock()
}

// Match returns the pattern and minifier that gets matched with the mediatype.
// It returns nil when no matching minifier exists.
// It has the same matching algorithm as Minify.
func (m *M) Match(mediatype string) (string, map[string]string, MinifierFunc) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	mimetype, params := parse.Mediatype([]byte(mediatype))
	if minifier, ok := m.literal[string(mimetype)]; ok { // string conversion is optimized away
		return string(mimetype), params, minifier.Minify
	}

	for _, minifier := range m.pattern {
		if minifier.pattern.Match(mimetype) {
			return minifier.pattern.String(), params, minifier.Minify
		}
	}
	return string(mimetype), params, nil
}

// Minify minifies the content of a Reader and writes it to a Writer (safe for concurrent use).
// An error is returned when no such mimetype exists (ErrNotExist) or when an error occurred in the minifier function.
// Mediatype may take the form of 'text/plain', 'text/*', '*/*' or 'text/plain; charset=UTF-8; version=2.0'.
func (m *M) Minify(mediatype string, w io.Writer, r io.Reader) error {
	mimetype, params := parse.Mediatype([]byte(mediatype))
	return m.MinifyMimetype(mimetype, w, r, params)
}

// MinifyMimetype minifies the content of a Reader and writes it to a Writer (safe for concurrent use).
// It is a lower level version of Minify and requires the mediatype to be split up into mimetype and parameters.
// It is mostly used internally by minifiers because it is faster (no need to convert a byte-slice to string and vice versa).
func (m *M) MinifyMimetype(mimetype []byte, w io.Writer, r io.Reader, params map[string]string) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if minifier, ok := m.literal[string(mimetype)]; ok { // string conversion is optimized away
		return minifier.Minify(m, w, r, params)
	}
	for _, minifier := range m.pattern {
		if minifier.pattern.Match(mimetype) {
			return minifier.Minify(m, w, r, params)
		}
	}
	return ErrNotExist
}

// Bytes minifies an array of bytes (safe for concurrent use). When an error occurs it return nil and the error.
func (m *M) Bytes(mediatype string, v []byte) ([]byte, error) {
	out := bytes.NewBuffer(make([]byte, 0, len(v)))
	if err := m.Minify(mediatype, out, bytes.NewReader(v)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// String minifies a string (safe for concurrent use). When an error occurs it return an empty string and the error.
func (m *M) String(mediatype string, v string) (string, error) {
	out := bytes.NewBuffer(make([]byte, 0, len(v)))
	if err := m.Minify(mediatype, out, strings.NewReader(v)); err != nil {
		return "", err
	}
	return out.String(), nil
}

// Reader wraps a Reader interface and minifies the stream.
// Errors from the minifier are returned by the reader.
func (m *M) Reader(mediatype string, r io.Reader) io.Reader {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(m.Minify(mediatype, pw, r))
	}()
	return pr
}

// Mimetype returns the mimetype registered for the extension of filename.
// It returns ErrNoExtension when filename has no extension and ErrNotExist when the extension is unknown.
func (m *M) Mimetype(filename string) (string, error) {
	ext := filepath.Ext(filename)
	if len(ext) < 2 {
		return "", ErrNoExtension
	}
	ext = ext[1:]

	m.mutex.RLock()
	mimetype, ok := m.ext[ext]
	m.mutex.RUnlock()
	if !ok {
		return "", fmt.Errorf("unsupported file type %s: %w", ext, ErrNotExist)
	}
	return mimetype, nil
}

// File reads filename, infers its mimetype from the file extension and returns the minified contents.
func (m *M) File(filename string) (string, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRead, err)
	}

	mimetype, err := m.Mimetype(filename)
	if err != nil {
		return "", err
	}

	out := bytes.NewBuffer(make([]byte, 0, len(b)))
	if err := m.Minify(mimetype, out, bytes.NewReader(b)); err != nil {
		if errors.Is(err, ErrNotExist) {
			return "", fmt.Errorf("unsupported file type %s: %w", filepath.Ext(filename)[1:], err)
		}
		return "", err
	}
	return out.String(), nil
}
