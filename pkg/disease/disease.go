// Package disease identifies plant diseases from uploaded leaf images.
//
// Identification is driven by the image's file name: plant and disease
// keywords narrow the candidates, and a weighted pick over the whole table is
// used when nothing matches.
package disease

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed diseases.yaml
var defaultTable []byte

// ErrEmptyTable is returned when a table has no entries.
var ErrEmptyTable = errors.New("disease table is empty")

// Diagnosis describes a detected disease and how to treat it.
type Diagnosis struct {
	ID                 string   `json:"id" yaml:"id"`
	Name               string   `json:"name" yaml:"name"`
	PlantType          string   `json:"plant_type,omitempty" yaml:"plant_type"`
	Confidence         float64  `json:"confidence" yaml:"confidence"`
	Description        string   `json:"description" yaml:"description"`
	Remedies           []string `json:"remedies" yaml:"remedies"`
	PreventiveMeasures []string `json:"preventive_measures" yaml:"preventive_measures"`
}

// Healthy reports whether the diagnosis found no disease.
func (d Diagnosis) Healthy() bool { return d.ID == "healthy" }

// Entry is a table row: a diagnosis and its weight in the fallback pick.
type Entry struct {
	Diagnosis `yaml:",inline"`
	Weight    int `yaml:"weight"`
}

// KeywordKind distinguishes plant keywords from disease keywords.
type KeywordKind string

const (
	KindPlant   KeywordKind = "plant"
	KindDisease KeywordKind = "disease"
)

// KeywordGroup maps file name substrings to candidate diseases.
type KeywordGroup struct {
	Kind     KeywordKind `yaml:"kind"`
	Words    []string    `yaml:"words"`
	Diseases []string    `yaml:"diseases"`
}

// Table is an immutable set of diagnoses with keyword groups.
type Table struct {
	entries  []Entry
	index    map[string]int
	keywords []KeywordGroup
	weighted []int
}

type tableFile struct {
	Diseases []Entry        `yaml:"diseases"`
	Keywords []KeywordGroup `yaml:"keywords"`
}

// NewTable validates entries and keyword groups. Plant groups are matched
// before disease groups regardless of their order here.
func NewTable(entries []Entry, keywords []KeywordGroup) (*Table, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyTable
	}

	t := &Table{index: make(map[string]int, len(entries))}
	for _, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("disease %q: missing id", e.Name)
		}
		if _, dup := t.index[e.ID]; dup {
			return nil, fmt.Errorf("duplicate disease id %q", e.ID)
		}
		if e.Weight < 0 {
			return nil, fmt.Errorf("disease %q: negative weight %d", e.ID, e.Weight)
		}
		if e.Weight == 0 {
			e.Weight = 1
		}
		t.index[e.ID] = len(t.entries)
		t.entries = append(t.entries, e)
	}

	for _, g := range keywords {
		if g.Kind != KindPlant && g.Kind != KindDisease {
			return nil, fmt.Errorf("keyword group %v: unknown kind %q", g.Words, g.Kind)
		}
	}
	for _, kind := range []KeywordKind{KindPlant, KindDisease} {
		for _, g := range keywords {
			if g.Kind != kind {
				continue
			}
			for _, id := range g.Diseases {
				if _, ok := t.index[id]; !ok {
					return nil, fmt.Errorf("keyword group %v references unknown disease %q", g.Words, id)
				}
			}
			words := make([]string, len(g.Words))
			for i, w := range g.Words {
				words[i] = strings.ToLower(w)
			}
			t.keywords = append(t.keywords, KeywordGroup{Kind: g.Kind, Words: words, Diseases: g.Diseases})
		}
	}

	// Every entry once in table order, then the extra copies.
	for i := range t.entries {
		t.weighted = append(t.weighted, i)
	}
	for i, e := range t.entries {
		for n := 1; n < e.Weight; n++ {
			t.weighted = append(t.weighted, i)
		}
	}
	return t, nil
}

// ParseTable decodes a YAML table.
func ParseTable(data []byte) (*Table, error) {
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing disease table: %w", err)
	}
	return NewTable(f.Diseases, f.Keywords)
}

// LoadTable reads a YAML table from path.
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading disease table: %w", err)
	}
	return ParseTable(data)
}

var (
	defaultOnce sync.Once
	defaultTbl  *Table
)

// DefaultTable returns the embedded disease table.
func DefaultTable() *Table {
	defaultOnce.Do(func() {
		t, err := ParseTable(defaultTable)
		if err != nil {
			panic(fmt.Sprintf("embedded disease table: %v", err))
		}
		defaultTbl = t
	})
	return defaultTbl
}

// Len returns the number of diseases.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns a copy of the table rows in order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Lookup returns the diagnosis for id.
func (t *Table) Lookup(id string) (Diagnosis, bool) {
	i, ok := t.index[id]
	if !ok {
		return Diagnosis{}, false
	}
	return t.entries[i].Diagnosis.clone(), true
}

// Candidates lists the diseases suggested by a file name, plant groups first.
// A disease suggested by several groups appears once per group.
func (t *Table) Candidates(filename string) []string {
	name := strings.ToLower(filename)
	var out []string
	for _, g := range t.keywords {
		for _, w := range g.Words {
			if strings.Contains(name, w) {
				out = append(out, g.Diseases...)
				break
			}
		}
	}
	return out
}

func (d Diagnosis) clone() Diagnosis {
	d.Remedies = append([]string(nil), d.Remedies...)
	d.PreventiveMeasures = append([]string(nil), d.PreventiveMeasures...)
	return d
}
