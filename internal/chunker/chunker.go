// Package chunker splits long document bodies into bounded, overlapping
// segments. Splitting is deterministic: the same input with the same
// parameters always yields byte-identical chunk boundaries.
package chunker

import (
	"strconv"

	"github.com/communitykit/communitybot/internal/core/domain"
	"github.com/communitykit/communitybot/internal/frontmatter"
	"github.com/communitykit/communitybot/internal/identity"
)

// Chunking presets per source type. Database rows and Slack messages are
// short by construction and are not split.
const (
	NotionChunkSize     = 500
	NotionChunkOverlap  = 50
	WebsiteChunkSize    = 2000
	WebsiteChunkOverlap = 0
)

// Splitter splits text into fixed-size chunks with overlap.
type Splitter struct {
	size    int
	overlap int
}

// New creates a splitter. Overlap is clamped below the chunk size.
func New(size, overlap int) *Splitter {
	if size <= 0 {
		size = NotionChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 4
	}
	return &Splitter{size: size, overlap: overlap}
}

// ForType returns the splitter preset for a document type, or nil when the
// type is not chunked.
func ForType(docType string) *Splitter {
	switch docType {
	case domain.TypeNotionPage:
		return New(NotionChunkSize, NotionChunkOverlap)
	case domain.TypeWebsitePage:
		return New(WebsiteChunkSize, WebsiteChunkOverlap)
	default:
		return nil
	}
}

// Split splits text at rune boundaries. The final chunk may be shorter.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := s.size - s.overlap
	chunks := make([]string, 0, len(runes)/step+1)

	for start := 0; start < len(runes); start += step {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// SplitDocument splits a document body and returns one document per chunk,
// each with the header prepended. When more than one chunk results, a
// chunk-sequence marker is added to the header so a human can see chunk
// order. Every chunk keeps the parent's sourceId so bulk deletion by
// parent still removes all of them.
//
// A nil splitter returns the single document with the header applied.
func SplitDocument(doc domain.Document, header *frontmatter.Header, s *Splitter) []domain.Document {
	if s == nil {
		doc.Content = header.Prepend(doc.Content)
		return []domain.Document{doc}
	}

	parts := s.Split(doc.Content)
	if len(parts) == 0 {
		parts = []string{""}
	}

	out := make([]domain.Document, 0, len(parts))
	for i, part := range parts {
		chunkHeader := cloneHeader(header)
		meta := cloneMetadata(doc.Metadata)
		if len(parts) > 1 {
			chunkHeader.Set("Chunk", strconv.Itoa(i))
			meta[domain.MetaChunk] = strconv.Itoa(i)
		}

		out = append(out, domain.Document{
			ID:       identity.ChunkID(doc.ID, i, len(parts)),
			Content:  chunkHeader.Prepend(part),
			Metadata: meta,
		})
	}

	return out
}

func cloneHeader(h *frontmatter.Header) *frontmatter.Header {
	c := frontmatter.NewHeader()
	h.Each(func(key, value string) {
		c.Set(key, value)
	})
	return c
}

func cloneMetadata(m map[string]string) map[string]string {
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
