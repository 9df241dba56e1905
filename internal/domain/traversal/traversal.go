// Package traversal provides typed accessors over the document tree.
package traversal

import (
	"fmt"

	"github.com/kailas-cloud/audiosearch/internal/domain"
	"github.com/kailas-cloud/audiosearch/internal/domain/document"
)

// Path names the level of the tree a component operates on.
type Path string

// Supported paths.
const (
	Root   Path = "r"
	Chunks Path = "c"
)

// ParsePath accepts "r", "@r", "c" and "@c".
func ParsePath(s string) (Path, error) {
	switch s {
	case "r", "@r":
		return Root, nil
	case "c", "@c":
		return Chunks, nil
	default:
		return "", fmt.Errorf("%w: unknown traversal path %q", domain.ErrInvalidConfig, s)
	}
}

// RootDocuments returns the non-nil documents of a batch.
func RootDocuments(docs []*document.Document) []*document.Document {
	out := make([]*document.Document, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

// ChunksOf returns the chunks of doc.
func ChunksOf(doc *document.Document) []*document.Document {
	if doc == nil {
		return nil
	}
	return doc.Chunks
}

// MatchesOf returns the matches of doc.
func MatchesOf(doc *document.Document) []*document.Document {
	if doc == nil {
		return nil
	}
	return doc.Matches
}

// ChunkMatches flattens the matches of every chunk of doc in chunk order.
func ChunkMatches(doc *document.Document) []*document.Document {
	var out []*document.Document
	for _, c := range ChunksOf(doc) {
		if c == nil {
			continue
		}
		out = append(out, c.Matches...)
	}
	return out
}

// Select returns the documents found at path.
func Select(docs []*document.Document, path Path) []*document.Document {
	roots := RootDocuments(docs)
	if path != Chunks {
		return roots
	}
	var out []*document.Document
	for _, d := range roots {
		for _, c := range d.Chunks {
			if c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}
