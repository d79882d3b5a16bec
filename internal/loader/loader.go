// Package loader decodes uploaded documents into jsondoc values.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned for file extensions no loader handles.
var ErrUnsupported = errors.New("unsupported file extension")

// Loader converts raw document bytes into a jsondoc value.
type Loader interface {
	Load(r io.Reader, filename string) (any, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
	".csv":  true,
}

// ForFile returns the appropriate loader for a filename.
func ForFile(filename string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		return &JSONLoader{}, nil
	case ".yaml", ".yml":
		return &YAMLLoader{}, nil
	case ".csv":
		return &CSVLoader{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// LoadBytes picks a loader by filename and decodes data.
func LoadBytes(data []byte, filename string) (any, error) {
	l, err := ForFile(filename)
	if err != nil {
		return nil, err
	}
	v, err := l.Load(bytes.NewReader(data), filename)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(filename), err)
	}
	return v, nil
}
