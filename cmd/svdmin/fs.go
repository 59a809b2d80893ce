package main

import (
	"io/fs"
	"os"
	"path/filepath"
)

// NewFS returns the file system that input paths are resolved against. Unlike os.DirFS it accepts the
// absolute and parent-relative paths users pass on the command line.
func NewFS() fs.FS {
	return osFS{}
}

type osFS struct{}

func (osFS) Open(name string) (fs.File, error) {
	return os.Open(filepath.FromSlash(name))
}

func (osFS) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(filepath.FromSlash(name))
}

func (osFS) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(filepath.FromSlash(name))
}
