// Package extract flattens nested IFC element property trees into one flat
// attribute record per element.
package extract

import (
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Record is the flat attribute map produced for one element.
type Record map[string]string

// setIfAbsent stores value under key unless the key is already set.
// The first occurrence in traversal order wins.
func (r Record) setIfAbsent(key, value string) {
	if _, ok := r[key]; ok {
		return
	}
	r[key] = value
}

// Text renders the record as "key: value" pairs joined by ", ", keys sorted.
func (r Record) Text() string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(r[k])
	}
	return b.String()
}

// Extractor applies a compiled Vocabulary to element trees.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	vocab Vocabulary

	nameKey         string
	dimensionsLabel string
	desired         map[string]struct{}
	pipeIndicators  map[string]struct{}
	dimensions      map[string]string
	dimensionKeys   []string
	crossSection    []string
	isCrossSection  map[string]struct{}
}

// New compiles a vocabulary into an Extractor.
func New(v Vocabulary) (*Extractor, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	x := &Extractor{
		vocab:           v.Clone(),
		nameKey:         strings.TrimSpace(v.NameKey),
		dimensionsLabel: strings.TrimSpace(v.DimensionsLabel),
		desired:         toSet(v.Desired),
		pipeIndicators:  toSet(v.PipeIndicators),
		dimensions:      make(map[string]string, len(v.Dimensions)),
		dimensionKeys:   v.DimensionKeys(),
		isCrossSection:  toSet(v.CrossSection),
	}
	for from, to := range v.Dimensions {
		x.dimensions[strings.TrimSpace(from)] = strings.TrimSpace(to)
	}
	for key := range x.isCrossSection {
		x.crossSection = append(x.crossSection, key)
	}
	return x, nil
}

// MustNew is New for vocabularies known to be valid.
func MustNew(v Vocabulary) *Extractor {
	x, err := New(v)
	if err != nil {
		panic(err)
	}
	return x
}

// Default returns an extractor over DefaultVocabulary.
func Default() *Extractor {
	return MustNew(DefaultVocabulary())
}

// Vocabulary returns a copy of the vocabulary the extractor was built from.
func (x *Extractor) Vocabulary() Vocabulary {
	return x.vocab.Clone()
}

// ProcessElement flattens one element tree into a fresh record.
func (x *Extractor) ProcessElement(n Node) Record {
	p := &pass{x: x, rec: make(Record)}
	p.walk(n)

	if p.sawDimensions {
		for _, key := range x.dimensionKeys {
			p.rec.setIfAbsent(key, "")
		}
	}
	return p.rec
}

// ProcessElements flattens a single tree or a forest of element trees.
// A forest yields one record per element in input order.
func (x *Extractor) ProcessElements(in Node) Result {
	if in.Kind != KindForest {
		return Result{Single: x.ProcessElement(in)}
	}

	records := make([]Record, 0, len(in.Children))
	for _, el := range in.Children {
		records = append(records, x.ProcessElement(el))
	}
	return Result{List: true, Many: records}
}

// pass is the traversal state for one element.
type pass struct {
	x             *Extractor
	rec           Record
	sawDimensions bool
}

func (p *pass) walk(n Node) {
	switch n.Kind {
	case KindForest:
		for _, child := range n.Children {
			p.walk(child)
		}
		return
	case KindSkip:
		return
	}

	if n.Name == p.x.dimensionsLabel {
		p.dimensions(n)
		return
	}

	if _, ok := p.x.desired[n.Name]; ok {
		if n.HasValue {
			p.rec.setIfAbsent(n.Name, Stringify(n.Value))
		} else if n.Name == p.x.nameKey {
			p.rec.setIfAbsent(n.Name, n.Name)
		}
	}

	for _, child := range n.Children {
		p.walk(child)
	}
}

// dimensions consumes a dimensions grouping node. Only its direct children
// are read.
func (p *pass) dimensions(n Node) {
	p.sawDimensions = true

	pipe := false
	for _, child := range n.Children {
		if !child.Named() {
			continue
		}
		if _, ok := p.x.pipeIndicators[child.Name]; ok {
			pipe = true
			break
		}
	}

	for _, child := range n.Children {
		if !child.Named() {
			continue
		}
		key, ok := p.x.dimensions[child.Name]
		if !ok {
			continue
		}
		if _, blank := p.x.isCrossSection[key]; pipe && blank {
			p.rec.setIfAbsent(key, "")
			continue
		}
		value := ""
		if child.HasValue {
			value = Stringify(child.Value)
		}
		p.rec.setIfAbsent(key, value)
	}

	// Round elements have no width or height, whatever was captured before.
	if pipe {
		for _, key := range p.x.crossSection {
			p.rec[key] = ""
		}
	}
}

// Result is the output of ProcessElements: one record for a single tree, or
// an ordered list for a forest.
type Result struct {
	List   bool
	Single Record
	Many   []Record
}

// Value returns the record or the record list, never nil.
func (r Result) Value() any {
	if r.List {
		if r.Many == nil {
			return []Record{}
		}
		return r.Many
	}
	if r.Single == nil {
		return Record{}
	}
	return r.Single
}

// Records returns the result as a list regardless of shape.
func (r Result) Records() []Record {
	if r.List {
		return r.Many
	}
	return []Record{r.Single}
}

// MarshalJSON encodes the result as an object or an array.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Value())
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[strings.TrimSpace(name)] = struct{}{}
	}
	return set
}
