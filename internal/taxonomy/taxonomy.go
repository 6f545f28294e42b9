// Package taxonomy loads the sector keyword taxonomy used to build search
// strategies and to judge sector relevance.
package taxonomy

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Sector describes one business sector and the search keywords that find
// businesses in it.
type Sector struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Taxonomy is the loaded set of sectors, keyed case-insensitively by name.
type Taxonomy struct {
	sectors map[string]Sector
}

// Load reads a taxonomy YAML file. The file is a list of sectors:
//
//	- name: Clínicas
//	  keywords: [clínica odontológica, consultório dentário]
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: read %s", path)
	}
	return Parse(data)
}

// Parse builds a Taxonomy from raw YAML.
func Parse(data []byte) (*Taxonomy, error) {
	var sectors []Sector
	if err := yaml.Unmarshal(data, &sectors); err != nil {
		return nil, eris.Wrap(err, "taxonomy: unmarshal")
	}

	t := &Taxonomy{sectors: make(map[string]Sector, len(sectors))}
	for _, s := range sectors {
		if s.Name == "" {
			return nil, eris.New("taxonomy: sector with empty name")
		}
		t.sectors[strings.ToLower(s.Name)] = s
	}
	return t, nil
}

// Keywords returns the configured keywords for a sector. Unknown sectors
// fall back to a generic keyword set derived from the sector name itself,
// so a collection run never starts with zero keywords.
func (t *Taxonomy) Keywords(sector string) []string {
	if t != nil {
		if s, ok := t.sectors[strings.ToLower(sector)]; ok && len(s.Keywords) > 0 {
			return s.Keywords
		}
	}
	return fallbackKeywords(sector)
}

// Known reports whether the sector is present in the taxonomy.
func (t *Taxonomy) Known(sector string) bool {
	if t == nil {
		return false
	}
	_, ok := t.sectors[strings.ToLower(sector)]
	return ok
}

// Sectors lists all configured sector names.
func (t *Taxonomy) Sectors() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.sectors))
	for _, s := range t.sectors {
		names = append(names, s.Name)
	}
	return names
}

func fallbackKeywords(sector string) []string {
	sector = strings.TrimSpace(sector)
	if sector == "" {
		return nil
	}
	return []string{
		sector,
		"empresa " + sector,
		sector + " perto de mim",
	}
}
