// Package catalog holds the fixed set of crop profiles that soil samples are
// scored against. Iteration order is part of the contract: it breaks ties
// between crops with equal suitability.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/cropwise/cropwise/pkg/soil"
)

// ErrUnknownCrop is returned when a crop identifier is not in the catalog.
var ErrUnknownCrop = errors.New("unknown crop")

//go:embed crops.yaml
var embeddedCrops []byte

// CropProfile is a single catalog entry.
type CropProfile struct {
	ID             string       `json:"id" yaml:"id"`
	Description    string       `json:"description" yaml:"description"`
	Ideal          soil.Partial `json:"ideal_conditions" yaml:"ideal_conditions"`
	Fertilizers    []string     `json:"fertilizers" yaml:"fertilizers"`
	Season         string       `json:"season,omitempty" yaml:"season,omitempty"`
	GrowthDuration string       `json:"growth_duration,omitempty" yaml:"growth_duration,omitempty"`
}

// Catalog is an ordered, read-only set of crop profiles.
type Catalog struct {
	profiles []CropProfile
	index    map[string]int
}

type catalogFile struct {
	Crops []CropProfile `yaml:"crops"`
}

// New builds a catalog from profiles in the given order.
// Identifiers are normalized to lower case and must be unique and non-empty.
func New(profiles ...CropProfile) (*Catalog, error) {
	c := &Catalog{
		profiles: make([]CropProfile, 0, len(profiles)),
		index:    make(map[string]int, len(profiles)),
	}
	for _, p := range profiles {
		p.ID = normalizeID(p.ID)
		if p.ID == "" {
			return nil, fmt.Errorf("crop at position %d has no id", len(c.profiles))
		}
		if _, dup := c.index[p.ID]; dup {
			return nil, fmt.Errorf("duplicate crop id %q", p.ID)
		}
		c.index[p.ID] = len(c.profiles)
		c.profiles = append(c.profiles, p)
	}
	return c, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	if len(f.Crops) == 0 {
		return nil, fmt.Errorf("parsing catalog: no crops defined")
	}
	return New(f.Crops...)
}

// Load reads a YAML catalog from disk.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Parse(data)
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in crop catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(embeddedCrops)
		if err != nil {
			panic(fmt.Sprintf("embedded crop catalog is invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Len returns the number of crops.
func (c *Catalog) Len() int { return len(c.profiles) }

// Profiles returns copies of the profiles in catalog order.
func (c *Catalog) Profiles() []CropProfile {
	out := make([]CropProfile, len(c.profiles))
	for i, p := range c.profiles {
		out[i] = p.clone()
	}
	return out
}

// IDs returns the crop identifiers in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, len(c.profiles))
	for i, p := range c.profiles {
		ids[i] = p.ID
	}
	return ids
}

// Lookup finds a crop by identifier, ignoring case and surrounding spaces.
func (c *Catalog) Lookup(id string) (CropProfile, bool) {
	i, ok := c.index[normalizeID(id)]
	if !ok {
		return CropProfile{}, false
	}
	return c.profiles[i].clone(), true
}

// Get is Lookup with an ErrUnknownCrop error instead of a boolean.
func (c *Catalog) Get(id string) (CropProfile, error) {
	p, ok := c.Lookup(id)
	if !ok {
		return CropProfile{}, fmt.Errorf("%w: %q", ErrUnknownCrop, id)
	}
	return p, nil
}

// Filter returns the profiles whose season label mentions season (case-insensitive),
// e.g. "Rabi" matches both "Rabi" and "Kharif/Rabi".
func (c *Catalog) Filter(season string) []CropProfile {
	season = strings.ToLower(strings.TrimSpace(season))
	var out []CropProfile
	for _, p := range c.profiles {
		for _, s := range strings.Split(strings.ToLower(p.Season), "/") {
			if strings.TrimSpace(s) == season {
				out = append(out, p.clone())
				break
			}
		}
	}
	return out
}

// clone returns a profile that shares no pointers or slices with p.
func (p CropProfile) clone() CropProfile {
	p.Ideal = p.Ideal.Clone()
	p.Fertilizers = append([]string(nil), p.Fertilizers...)
	return p
}

// DisplayName turns an identifier such as "black_pepper" into "Black Pepper".
func DisplayName(id string) string {
	words := strings.Split(id, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
