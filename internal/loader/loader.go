// Package loader reads source files from a folder and turns them into text
// documents, one parser per file format.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNoFiles is returned when the ingest folder contains no regular files.
var ErrNoFiles = errors.New("no files found in the ingest folder")

// Format tags a source file by the parser that handles it.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatCSV  Format = "csv"
)

// SourceFile is a file discovered in the ingest folder.
type SourceFile struct {
	Path   string
	Format Format // empty when no parser handles the extension
}

// Metadata identifies where a piece of text came from.
type Metadata struct {
	Source string // file path
	Page   *int   // page number (pdf), row index (csv); nil when not applicable
}

// Document is the text of one logical unit of a source file.
type Document struct {
	Text     string
	Metadata Metadata
}

// FailedFile records a file that could not be parsed.
type FailedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result groups loaded documents by source format.
type Result struct {
	PDF    []Document
	Word   []Document
	CSV    []Document
	Failed []FailedFile
}

// Len returns the total number of loaded documents.
func (r *Result) Len() int {
	return len(r.PDF) + len(r.Word) + len(r.CSV)
}

type parseFunc func(path string) ([]Document, error)

// Loader dispatches files to format parsers.
type Loader struct {
	parsers map[Format]parseFunc
	logger  *slog.Logger
}

// New creates a loader for pdf, docx and csv files.
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		parsers: map[Format]parseFunc{
			FormatPDF:  parsePDF,
			FormatDOCX: parseDOCX,
			FormatCSV:  parseCSV,
		},
		logger: logger,
	}
}

// ListFiles returns the regular files directly inside folder, sorted by name.
// Subdirectories are not descended into.
func ListFiles(folder string) ([]SourceFile, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", folder, err)
	}

	var files []SourceFile
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(folder, entry.Name())
		files = append(files, SourceFile{
			Path:   path,
			Format: formatOf(path),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func formatOf(path string) Format {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch Format(ext) {
	case FormatPDF, FormatDOCX, FormatCSV:
		return Format(ext)
	default:
		return ""
	}
}

// Load parses every supported file. Unsupported files are skipped silently;
// files that fail to parse are logged, recorded in Result.Failed and skipped.
func (l *Loader) Load(ctx context.Context, files []SourceFile) *Result {
	result := &Result{}

	for _, file := range files {
		if ctx.Err() != nil {
			break
		}

		parse, ok := l.parsers[file.Format]
		if !ok {
			l.logger.Debug("Skipping unsupported file", "path", file.Path)
			continue
		}

		docs, err := safeParse(parse, file.Path)
		if err != nil {
			l.logger.Error("Failed to load file", "path", file.Path, "error", err)
			result.Failed = append(result.Failed, FailedFile{Path: file.Path, Reason: err.Error()})
			continue
		}
		l.logger.Debug("Loaded file", "path", file.Path, "documents", len(docs))

		switch file.Format {
		case FormatPDF:
			result.PDF = append(result.PDF, docs...)
		case FormatDOCX:
			result.Word = append(result.Word, docs...)
		case FormatCSV:
			result.CSV = append(result.CSV, docs...)
		}
	}

	return result
}

// safeParse turns a parser panic into an error; the pdf reader panics on
// some malformed inputs.
func safeParse(parse parseFunc, path string) (docs []Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("parse %s: %v", path, r)
		}
	}()
	return parse(path)
}

func intPtr(i int) *int {
	return &i
}
