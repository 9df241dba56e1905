package chunk

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/audiosearch/internal/db"
	"github.com/kailas-cloud/audiosearch/internal/domain"
	"github.com/kailas-cloud/audiosearch/internal/domain/document"
	"github.com/kailas-cloud/audiosearch/internal/domain/tags"
)

// Hash field names.
const (
	fieldChunkID  = "chunk_id"
	fieldParentID = "parent_id"
	fieldURI      = "uri"
	fieldBegInMs  = domain.TagBegInMs
	fieldEndInMs  = domain.TagEndInMs
	fieldTags     = "tags"
	fieldVector   = "vector"
	fieldChunks   = "chunks"
	fieldChunkIDs = "chunk_ids"
	fieldDuration = "duration_ms"
	chunkIDsSep   = ","
)

var returnFields = []string{fieldChunkID, fieldParentID, fieldURI, fieldBegInMs, fieldEndInMs, fieldTags}

// Parent is the stored summary of an indexed source document.
type Parent struct {
	ID         string
	URI        string
	Chunks     int
	DurationMs float64
	Tags       *tags.Tags
}

func chunkFields(c *document.Document) (map[string]string, error) {
	tagJSON, err := json.Marshal(c.Tags.Clone())
	if err != nil {
		return nil, fmt.Errorf("marshal tags of chunk %s: %w", c.ID, err)
	}
	beg, end, _ := c.Span()
	return map[string]string{
		fieldChunkID:  c.ID,
		fieldParentID: c.ParentID,
		fieldURI:      c.URI,
		fieldBegInMs:  strconv.FormatFloat(beg, 'f', -1, 64),
		fieldEndInMs:  strconv.FormatFloat(end, 'f', -1, 64),
		fieldTags:     string(tagJSON),
		fieldVector:   db.EncodeVector(c.Embedding),
	}, nil
}

func parentFields(p *document.Document, chunkIDs []string) (map[string]string, error) {
	tagJSON, err := json.Marshal(p.Tags.Clone())
	if err != nil {
		return nil, fmt.Errorf("marshal tags of %s: %w", p.ID, err)
	}
	return map[string]string{
		fieldURI:      p.URI,
		fieldChunks:   strconv.Itoa(len(chunkIDs)),
		fieldChunkIDs: strings.Join(chunkIDs, chunkIDsSep),
		fieldDuration: strconv.FormatFloat(p.Duration()*1000, 'f', -1, 64),
		fieldTags:     string(tagJSON),
	}, nil
}

func parseParent(id string, rec map[string]string) (Parent, error) {
	p := Parent{ID: id, URI: rec[fieldURI], Tags: tags.New()}
	if v := rec[fieldChunks]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Parent{}, fmt.Errorf("parse chunks of %s: %w", id, err)
		}
		p.Chunks = n
	}
	if v := rec[fieldDuration]; v != "" {
		p.DurationMs, _ = strconv.ParseFloat(v, 64)
	}
	if v := rec[fieldTags]; v != "" {
		if err := json.Unmarshal([]byte(v), p.Tags); err != nil {
			return Parent{}, fmt.Errorf("parse tags of %s: %w", id, err)
		}
	}
	return p, nil
}

func matchFromFields(keyID string, f map[string]string) (*document.Document, error) {
	m := &document.Document{
		ID:       f[fieldChunkID],
		ParentID: f[fieldParentID],
		URI:      f[fieldURI],
		Tags:     tags.New(),
	}
	if m.ID == "" {
		m.ID = keyID
	}
	if v := f[fieldTags]; v != "" {
		if err := json.Unmarshal([]byte(v), m.Tags); err != nil {
			return nil, err
		}
	}
	// The indexed numeric fields win over whatever the tags blob carries.
	for _, k := range []string{fieldBegInMs, fieldEndInMs} {
		if v, ok := f[k]; ok && v != "" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", k, err)
			}
			m.Tags.Set(k, n)
		}
	}
	return m, nil
}

func splitIDs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, chunkIDsSep)
}
