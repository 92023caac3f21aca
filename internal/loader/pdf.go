package loader

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// parsePDF returns one document per page, numbered from 1. Blank or
// unreadable page dictionaries yield empty documents so numbering stays
// aligned with the file.
func parsePDF(path string) ([]Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	docs := make([]Document, 0, numPages)

	for i := 1; i <= numPages; i++ {
		var text string
		if page := reader.Page(i); !page.V.IsNull() {
			text, err = page.GetPlainText(nil)
			if err != nil {
				return nil, fmt.Errorf("read page %d: %w", i, err)
			}
		}

		docs = append(docs, Document{
			Text: text,
			Metadata: Metadata{
				Source: path,
				Page:   intPtr(i),
			},
		})
	}

	return docs, nil
}
