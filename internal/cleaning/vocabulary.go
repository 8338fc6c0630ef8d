package cleaning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Vocabulary holds the alias tables and the closed set of canonical areas.
// Treat it as read-only once built.
type Vocabulary struct {
	AreaAliases     map[string]string `yaml:"area_aliases"`
	CategoryAliases map[string]string `yaml:"category_aliases"`
	CanonicalAreas  []string          `yaml:"canonical_areas"`
}

// DefaultVocabulary returns the vocabulary of the finance exports.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		AreaAliases: map[string]string{
			"ventas":      "Ventas",
			"VENTAS":      "Ventas",
			"marketing":   "Marketing",
			"MARKETING":   "Marketing",
			"ti":          "Ti",
			"TI":          "Ti",
			"IT":          "Ti",
			"rrhh":        "Rrhh",
			"RRHH":        "Rrhh",
			"operaciones": "Operaciones",
			"OPERACIONES": "Operaciones",
		},
		CategoryAliases: map[string]string{
			"salarios":   "Salarios",
			"SALARIOS":   "Salarios",
			"publicidad": "Publicidad",
			"PUBLICIDAD": "Publicidad",
		},
		CanonicalAreas: []string{"Ventas", "Marketing", "Ti", "Rrhh", "Operaciones"},
	}
}

// LoadVocabulary reads a YAML vocabulary file. Sections left out of the file
// keep their default values.
func LoadVocabulary(path string) (Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("LoadVocabulary: failed to read %s: %w", path, err)
	}

	var file Vocabulary
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return Vocabulary{}, fmt.Errorf("LoadVocabulary: failed to parse %s: %w", path, err)
	}

	voc := DefaultVocabulary()
	if file.AreaAliases != nil {
		voc.AreaAliases = file.AreaAliases
	}
	if file.CategoryAliases != nil {
		voc.CategoryAliases = file.CategoryAliases
	}
	if len(file.CanonicalAreas) > 0 {
		voc.CanonicalAreas = file.CanonicalAreas
	}
	return voc, nil
}
