package db

import (
	"errors"
	"fmt"
	"strings"
)

// DistanceMetric used by vector fields.
type DistanceMetric string

// Distance metrics.
const (
	DistanceL2     DistanceMetric = "L2"
	DistanceIP     DistanceMetric = "IP"
	DistanceCosine DistanceMetric = "COSINE"
)

// VectorAlgorithm selects the index structure for vector fields.
type VectorAlgorithm string

// Vector algorithms.
const (
	VectorHNSW VectorAlgorithm = "HNSW"
	VectorFlat VectorAlgorithm = "FLAT"
)

// ParseAlgorithm accepts "hnsw" or "flat" in any case.
func ParseAlgorithm(s string) (VectorAlgorithm, error) {
	switch s {
	case "", "hnsw", "HNSW":
		return VectorHNSW, nil
	case "flat", "FLAT":
		return VectorFlat, nil
	}
	return "", fmt.Errorf("unknown vector algorithm %q", s)
}

// ParseDistance accepts "l2", "ip" or "cosine" in any case. Empty means cosine.
func ParseDistance(s string) (DistanceMetric, error) {
	switch d := DistanceMetric(strings.ToUpper(s)); d {
	case "":
		return DistanceCosine, nil
	case DistanceL2, DistanceIP, DistanceCosine:
		return d, nil
	}
	return "", fmt.Errorf("unknown distance metric %q", s)
}

// IndexFieldType enumerates supported schema field types.
type IndexFieldType int

// Field types.
const (
	IndexFieldNumeric IndexFieldType = iota
	IndexFieldTag
	IndexFieldVector
)

// IndexField describes a single schema field.
type IndexField struct {
	Name string
	Type IndexFieldType

	VectorAlgo        VectorAlgorithm
	VectorDim         int
	VectorDistance    DistanceMetric
	VectorM           int // HNSW max edges per node
	VectorEFConstruct int // HNSW build-time candidate list size
	VectorBlockSize   int // FLAT block size
}

// IndexDefinition is a complete FT.CREATE definition over hashes.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// Validate checks that the definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return errors.New("index name contains invalid characters")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}
	seen := make(map[string]bool, len(idx.Fields))
	for i, f := range idx.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate field name: %s", f.Name)
		}
		seen[f.Name] = true
		if f.Type == IndexFieldVector && f.VectorDim <= 0 {
			return fmt.Errorf("vector field %s requires positive DIM", f.Name)
		}
	}
	return nil
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == ':' || r == '-':
		default:
			return false
		}
	}
	return true
}
