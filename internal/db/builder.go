package db

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// IndexBuilder assembles an IndexDefinition fluently.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts a hash index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Prefix adds key prefixes covered by the index.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// Numeric adds a NUMERIC field.
func (b *IndexBuilder) Numeric(name string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Name: name, Type: IndexFieldNumeric})
	return b
}

// Tag adds a TAG field.
func (b *IndexBuilder) Tag(name string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Name: name, Type: IndexFieldTag})
	return b
}

// Vector adds a vector field using algo; m and ef apply to HNSW only.
func (b *IndexBuilder) Vector(name string, dim int, algo VectorAlgorithm, distance DistanceMetric, m, ef int) *IndexBuilder {
	f := IndexField{
		Name:           name,
		Type:           IndexFieldVector,
		VectorAlgo:     algo,
		VectorDim:      dim,
		VectorDistance: distance,
	}
	if algo == VectorHNSW {
		f.VectorM, f.VectorEFConstruct = m, ef
	}
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Build validates and returns the definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return &b.def, nil
}

// MustBuild calls Build and panics on error.
func (b *IndexBuilder) MustBuild() *IndexDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// CreateArgs returns the FT.CREATE arguments after the command name.
func (idx *IndexDefinition) CreateArgs() ([]string, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	args := []string{idx.Name, "ON", "HASH"}
	if n := len(idx.Prefixes); n > 0 {
		args = append(append(args, "PREFIX", strconv.Itoa(n)), idx.Prefixes...)
	}
	args = append(args, "SCHEMA")
	for i := range idx.Fields {
		fa, err := idx.Fields[i].schemaArgs()
		if err != nil {
			return nil, err
		}
		args = append(args, fa...)
	}
	return args, nil
}

// String renders the FT.CREATE command, or the validation error.
func (idx *IndexDefinition) String() string {
	args, err := idx.CreateArgs()
	if err != nil {
		return "invalid index: " + err.Error()
	}
	return "FT.CREATE " + strings.Join(args, " ")
}

func (f *IndexField) schemaArgs() ([]string, error) {
	switch f.Type {
	case IndexFieldNumeric:
		return []string{f.Name, "NUMERIC"}, nil
	case IndexFieldTag:
		return []string{f.Name, "TAG"}, nil
	case IndexFieldVector:
		return append([]string{f.Name}, f.vectorArgs()...), nil
	}
	return nil, fmt.Errorf("field %s: unknown type %d", f.Name, f.Type)
}

// vectorArgs renders "VECTOR <algo> <n> <attrs...>"; algo and distance
// default to HNSW and COSINE, and zero tuning knobs are omitted.
func (f *IndexField) vectorArgs() []string {
	algo := cmp.Or(f.VectorAlgo, VectorHNSW)
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(f.VectorDim),
		"DISTANCE_METRIC", string(cmp.Or(f.VectorDistance, DistanceCosine)),
	}
	knob := func(name string, v int) {
		if v > 0 {
			attrs = append(attrs, name, strconv.Itoa(v))
		}
	}
	switch algo {
	case VectorHNSW:
		knob("M", f.VectorM)
		knob("EF_CONSTRUCTION", f.VectorEFConstruct)
	case VectorFlat:
		knob("BLOCK_SIZE", f.VectorBlockSize)
	}
	return append([]string{"VECTOR", string(algo), strconv.Itoa(len(attrs))}, attrs...)
}
