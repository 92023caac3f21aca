package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// parseCSV returns one document per data row. Each row is rendered as
// "column: value" lines using the header row; page holds the 0-based row index.
func parseCSV(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var docs []Document
	for row := 0; ; row++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}

		lines := make([]string, 0, len(record))
		for i, value := range record {
			column := fmt.Sprintf("column_%d", i)
			if i < len(header) && header[i] != "" {
				column = header[i]
			}
			lines = append(lines, column+": "+strings.TrimSpace(value))
		}

		docs = append(docs, Document{
			Text: strings.Join(lines, "\n"),
			Metadata: Metadata{
				Source: path,
				Page:   intPtr(row),
			},
		})
	}

	return docs, nil
}
