// Package splitter breaks document text into overlapping chunks, preferring
// paragraph, then line, then word boundaries before falling back to single
// characters.
package splitter

import (
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/bull/docrag/internal/loader"
)

const (
	// DefaultChunkSize is the maximum chunk length in characters.
	DefaultChunkSize = 200

	// DefaultChunkOverlap is the number of characters shared by consecutive chunks.
	DefaultChunkOverlap = 50
)

// DefaultSeparators are tried in order; the empty separator splits into characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunk is a bounded piece of a document's text.
type Chunk struct {
	Text       string
	Metadata   loader.Metadata
	StartIndex int // offset of Text in the parent document, in characters
}

// Splitter wraps langchaingo's recursive character splitter and locates each
// chunk in its parent document. Lengths are counted in runes, not bytes.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
	rc         textsplitter.RecursiveCharacter
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithChunkOverlap sets the overlap between chunks in characters.
func WithChunkOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator hierarchy.
func WithSeparators(separators ...string) Option {
	return func(s *Splitter) {
		if len(separators) > 0 {
			s.separators = append([]string(nil), separators...)
		}
	}
}

// New creates a splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Ensure overlap doesn't exceed chunk size
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}

	s.rc = textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(s.chunkSize),
		textsplitter.WithChunkOverlap(s.overlap),
		textsplitter.WithSeparators(s.separators),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)
	return s
}

// ChunkSize returns the configured window size.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// ChunkOverlap returns the configured overlap.
func (s *Splitter) ChunkOverlap() int { return s.overlap }

// SplitDocuments splits each document in turn. Chunks keep their parent's
// metadata and appear in document order, then position order.
func (s *Splitter) SplitDocuments(docs ...[]loader.Document) []Chunk {
	var chunks []Chunk
	for _, group := range docs {
		for _, doc := range group {
			chunks = append(chunks, s.splitDocument(doc)...)
		}
	}
	return chunks
}

func (s *Splitter) splitDocument(doc loader.Document) []Chunk {
	texts := s.SplitText(doc.Text)
	chunks := make([]Chunk, 0, len(texts))

	// Locate each chunk in the parent. The next chunk cannot begin before the
	// previous one ends minus the overlap.
	searchFrom := 0
	for _, text := range texts {
		start := searchFrom
		if offset := strings.Index(doc.Text[searchFrom:], text); offset >= 0 {
			start = searchFrom + offset
			searchFrom = backRunes(doc.Text, start+len(text), s.overlap)
			if searchFrom <= start {
				_, size := utf8.DecodeRuneInString(doc.Text[start:])
				searchFrom = start + size
			}
		}

		chunks = append(chunks, Chunk{
			Text:       text,
			Metadata:   copyMetadata(doc.Metadata),
			StartIndex: utf8.RuneCountInString(doc.Text[:start]),
		})
	}
	return chunks
}

// SplitText splits text into chunks of at most ChunkSize characters.
func (s *Splitter) SplitText(text string) []string {
	// RecursiveCharacter never returns an error; the signature satisfies the
	// textsplitter.TextSplitter interface.
	chunks, _ := s.rc.SplitText(text)
	out := chunks[:0]
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// backRunes moves byte offset i back by n runes.
func backRunes(s string, i, n int) int {
	for ; n > 0 && i > 0; n-- {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return i
}

func copyMetadata(m loader.Metadata) loader.Metadata {
	out := loader.Metadata{Source: m.Source}
	if m.Page != nil {
		page := *m.Page
		out.Page = &page
	}
	return out
}
