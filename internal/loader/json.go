package loader

import (
	"fmt"
	"io"

	"github.com/dgallion1/fieldmap/internal/jsondoc"
)

// JSONLoader handles JSON files.
type JSONLoader struct{}

func (l *JSONLoader) Load(r io.Reader, filename string) (any, error) {
	v, err := jsondoc.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return v, nil
}
