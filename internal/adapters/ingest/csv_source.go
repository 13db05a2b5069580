package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// readCSV streams rows to fn as header-keyed maps. The whole file is never
// buffered; each record is handed over as soon as it parses.
func readCSV(ctx context.Context, r io.Reader, fn func(map[string]string) error) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // real exports have ragged rows
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	rows := 0
	for {
		if err := ctx.Err(); err != nil {
			return rows, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, fmt.Errorf("reading CSV row %d: %w", rows+1, err)
		}

		row := make(map[string]string, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(record) {
				row[col] = record[i]
			}
		}
		rows++
		if err := fn(row); err != nil {
			return rows, err
		}
	}
}
