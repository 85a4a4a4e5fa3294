// Package source reads export files dropped into the import directory,
// archives the raw bytes by content hash and turns them into text for the
// cleaner.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

// RawFile is an export as it was found, before decoding.
type RawFile struct {
	Name string
	Path string
	Raw  []byte
}

type Source interface {
	Read(ctx context.Context, name string) (RawFile, error)
}

// DirSource reads exports from a local directory, typically the target of an
// FTP mirror.
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) Read(ctx context.Context, name string) (RawFile, error) {
	if err := ctx.Err(); err != nil {
		return RawFile{}, err
	}
	if name == "" || filepath.Base(name) != name {
		return RawFile{}, fmt.Errorf("invalid export file name %q", name)
	}
	if !Supported(name) {
		return RawFile{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}

	path := filepath.Join(s.dir, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		return RawFile{}, err
	}
	return RawFile{Name: name, Path: path, Raw: raw}, nil
}

// Supported reports whether the file extension is one the loader understands.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".xlsx":
		return true
	}
	return false
}

func isWorkbook(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx")
}
