package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/matryer/try"
)

const openAttempts = 5

// IsDir returns true if dir ends in a path separator or is an existing directory that is not a symlink.
func IsDir(dir string) bool {
	if dir != "" && os.IsPathSeparator(dir[len(dir)-1]) {
		return true
	}
	info, err := os.Lstat(dir)
	return err == nil && info.IsDir() && info.Mode()&os.ModeSymlink == 0
}

// retryOpen calls open until it succeeds or runs out of attempts, files may be briefly locked while an editor saves them.
func retryOpen(open func() (*os.File, error)) (*os.File, error) {
	var f *os.File
	err := try.Do(func(attempt int) (bool, error) {
		var err error
		f, err = open()
		return attempt < openAttempts, err
	})
	return f, err
}

// openInputFile opens an SVD or XML document, the empty name is stdin.
func openInputFile(input string) (io.ReadCloser, error) {
	if input == "" {
		return os.Stdin, nil
	}
	r, err := retryOpen(func() (*os.File, error) {
		return os.Open(input)
	})
	if err != nil {
		return nil, fmt.Errorf("open input file %q: %w", input, err)
	}
	return r, nil
}

// openOutputFile creates or truncates the destination and its parent directories, the empty name is stdout.
func openOutputFile(output string) (*os.File, error) {
	if output == "" {
		return os.Stdout, nil
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return nil, fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	w, err := retryOpen(func() (*os.File, error) {
		return os.OpenFile(output, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0666)
	})
	if err != nil {
		return nil, fmt.Errorf("open output file %q: %w", output, err)
	}
	return w, nil
}
