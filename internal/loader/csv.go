package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/fieldmap/internal/jsondoc"
)

// CSVLoader handles CSV files. The first row names the columns; every
// other row becomes an object. The rows are returned under a single key
// named after the file: people.csv -> {"people": [{...}, ...]}.
type CSVLoader struct{}

func (l *CSVLoader) Load(r io.Reader, filename string) (any, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if name == "" {
		name = "rows"
	}

	rows := jsondoc.Array{}
	if len(records) == 0 {
		return jsondoc.Object{{Key: name, Value: rows}}, nil
	}

	headers := records[0]
	for _, rec := range records[1:] {
		row := jsondoc.Object{}
		for j, h := range headers {
			var cell any
			if j < len(rec) {
				cell = rec[j]
			}
			row.Set(h, cell)
		}
		rows = append(rows, row)
	}
	return jsondoc.Object{{Key: name, Value: rows}}, nil
}
