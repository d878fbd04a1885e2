package extract

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary is the fixed set of names the extractor works with.
// The YAML format mirrors data/defaults/vocabulary.yaml. JSON bodies parse too,
// since JSON is valid YAML.
type Vocabulary struct {
	NameKey         string            `json:"name_key" yaml:"name_key"`
	DimensionsLabel string            `json:"dimensions_label" yaml:"dimensions_label"`
	Desired         []string          `json:"desired" yaml:"desired"`
	PipeIndicators  []string          `json:"pipe_indicators" yaml:"pipe_indicators"`
	Dimensions      map[string]string `json:"dimensions" yaml:"dimensions"` // child name -> canonical key
	CrossSection    []string          `json:"cross_section" yaml:"cross_section"`
}

// DefaultVocabulary returns the Polish-locale vocabulary used by IFC property
// exports from the viewer.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		NameKey:         "Name",
		DimensionsLabel: "Wymiary",
		Desired: []string{
			"Name", "Class", "GlobalId", "Rodzina i typ",
			"Długość", "Szerokość", "Wielkość", "Wysokość", "Typ systemu",
		},
		PipeIndicators: []string{"Grubość ścianki", "Średnica wewnętrzna", "Średnica zewnętrzna"},
		Dimensions: map[string]string{
			"Długość":   "Długość",
			"Wielkość":  "Wielkość",
			"Szerokość": "Szerokość",
			"Wysokość":  "Wysokość",
		},
		CrossSection: []string{"Szerokość", "Wysokość"},
	}
}

// Validate checks that the vocabulary can drive an extractor.
func (v Vocabulary) Validate() error {
	if strings.TrimSpace(v.NameKey) == "" {
		return errors.New("vocabulary: name_key is required")
	}
	if strings.TrimSpace(v.DimensionsLabel) == "" {
		return errors.New("vocabulary: dimensions_label is required")
	}
	if len(v.Desired) == 0 {
		return errors.New("vocabulary: desired must not be empty")
	}
	for _, name := range v.Desired {
		if strings.TrimSpace(name) == "" {
			return errors.New("vocabulary: desired contains an empty name")
		}
	}
	canonical := make(map[string]struct{}, len(v.Dimensions))
	for from, to := range v.Dimensions {
		if strings.TrimSpace(from) == "" || strings.TrimSpace(to) == "" {
			return errors.New("vocabulary: dimensions contains an empty name")
		}
		canonical[strings.TrimSpace(to)] = struct{}{}
	}
	for _, key := range v.CrossSection {
		if _, ok := canonical[strings.TrimSpace(key)]; !ok {
			return fmt.Errorf("vocabulary: cross_section key %q is not a dimension key", key)
		}
	}
	return nil
}

// Clone returns a deep copy.
func (v Vocabulary) Clone() Vocabulary {
	out := Vocabulary{
		NameKey:         v.NameKey,
		DimensionsLabel: v.DimensionsLabel,
		Desired:         append([]string(nil), v.Desired...),
		PipeIndicators:  append([]string(nil), v.PipeIndicators...),
		CrossSection:    append([]string(nil), v.CrossSection...),
		Dimensions:      make(map[string]string, len(v.Dimensions)),
	}
	for k, val := range v.Dimensions {
		out.Dimensions[k] = val
	}
	return out
}

// DimensionKeys returns the distinct canonical dimension keys, sorted.
func (v Vocabulary) DimensionKeys() []string {
	seen := make(map[string]struct{}, len(v.Dimensions))
	keys := make([]string, 0, len(v.Dimensions))
	for _, to := range v.Dimensions {
		to = strings.TrimSpace(to)
		if _, ok := seen[to]; ok {
			continue
		}
		seen[to] = struct{}{}
		keys = append(keys, to)
	}
	sort.Strings(keys)
	return keys
}

// LoadVocabulary parses a YAML vocabulary file.
func LoadVocabulary(filePath string) (Vocabulary, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return Vocabulary{}, err
	}
	defer file.Close()

	return ParseVocabulary(file)
}

// ParseVocabulary parses a vocabulary from an io.Reader and validates it.
func ParseVocabulary(r io.Reader) (Vocabulary, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Vocabulary{}, err
	}

	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("parsing vocabulary: %w", err)
	}
	if err := v.Validate(); err != nil {
		return Vocabulary{}, err
	}
	return v, nil
}

// Encode writes the vocabulary as a YAML document.
func (v Vocabulary) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
