package loader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errNoDocumentXML = errors.New("word/document.xml not found")

// parseDOCX returns the whole file as one document with paragraphs separated
// by blank lines, so the splitter can break on them first.
func parseDOCX(path string) ([]Document, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer reader.Close()

	var body []byte
	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open document.xml: %w", err)
		}
		body, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read document.xml: %w", err)
		}
		break
	}
	if body == nil {
		return nil, errNoDocumentXML
	}

	paragraphs, err := docxParagraphs(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document.xml: %w", err)
	}

	return []Document{{
		Text:     strings.Join(paragraphs, "\n\n"),
		Metadata: Metadata{Source: path},
	}}, nil
}

// docxParagraphs walks document.xml and returns the text of every w:p, in
// document order. Paragraphs nested in tables, text boxes and content
// controls are included.
func docxParagraphs(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		sb         strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteByte('\t')
			case "br", "cr":
				sb.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				if text := strings.TrimSpace(sb.String()); text != "" {
					paragraphs = append(paragraphs, text)
				}
				sb.Reset()
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}
	return paragraphs, nil
}
