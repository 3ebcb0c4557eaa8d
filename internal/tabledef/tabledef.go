// Package tabledef binds a table's cleansing rules and merge behavior
// into one declarative definition. Definitions ship built in or load
// from YAML files, so onboarding a new source table is configuration,
// not code.
package tabledef

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/refinery-cli/internal/cleanse"
	"github.com/sells-group/refinery-cli/internal/model"
	"github.com/sells-group/refinery-cli/internal/scd"
)

// TableDef is the complete processing definition for one table.
type TableDef struct {
	Name    string              `yaml:"name" json:"name"`
	Cleanse cleanse.TableConfig `yaml:"cleanse" json:"cleanse"`
	Merge   scd.MergeConfig     `yaml:"merge" json:"merge"`
}

// Validate checks the definition end to end against the given
// registries.
func (d TableDef) Validate(tr *cleanse.TransformerRegistry, vr *cleanse.ValidatorRegistry) error {
	if d.Name == "" {
		return eris.New("tabledef: definition missing name")
	}
	if err := d.Cleanse.Validate(tr, vr); err != nil {
		return eris.Wrapf(err, "tabledef: %s cleanse config", d.Name)
	}
	if err := d.Merge.Validate(); err != nil {
		return eris.Wrapf(err, "tabledef: %s merge config", d.Name)
	}
	return nil
}

// Registry holds table definitions by name, preserving registration
// order.
type Registry struct {
	defs  map[string]TableDef
	order []string
}

// NewRegistry creates a registry seeded with the built-in definitions.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]TableDef)}
	r.Register(Customers())
	return r
}

// Register adds or replaces a definition.
func (r *Registry) Register(def TableDef) {
	if _, exists := r.defs[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.defs[def.Name] = def
}

// Get returns the definition for a table name.
func (r *Registry) Get(name string) (TableDef, error) {
	def, ok := r.defs[name]
	if !ok {
		return TableDef{}, eris.Errorf("tabledef: unknown table %q", name)
	}
	return def, nil
}

// Names returns registered table names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// LoadDir reads every .yaml/.yml file in dir as one TableDef and
// registers it. Files load in lexical order so overrides are
// deterministic.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return eris.Wrapf(err, "tabledef: read dir %s", dir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		def, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		r.Register(def)
	}
	return nil
}

// LoadFile reads one YAML table definition.
func LoadFile(path string) (TableDef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return TableDef{}, eris.Wrapf(err, "tabledef: read %s", path)
	}
	var def TableDef
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return TableDef{}, eris.Wrapf(err, "tabledef: parse %s", path)
	}
	if def.Name == "" {
		return TableDef{}, eris.Errorf("tabledef: %s missing name", path)
	}
	return def, nil
}

// Customers is the built-in definition for the customer master table.
func Customers() TableDef {
	return TableDef{
		Name: "customers",
		Cleanse: cleanse.TableConfig{
			Rules: []cleanse.FieldRule{
				{Field: "nric", Transformer: "standardize_nric", Validators: []string{"singapore_nric"}},
				{Field: "gender", Transformer: "normalize_gender", Validators: []string{"gender"}},
				{Field: "country", Transformer: "normalize_nationality", Validators: []string{"nationality_code"}},
				{Field: "phone", Transformer: "standardize_phone"},
				{Field: "email", Validators: []string{"email"}},
				{Field: "postal_code", Source: "address", Transformer: "extract_postal_code", Validators: []string{"singapore_postal_code"}},
			},
			UppercaseFields: []string{"full_name", "nric", "gender", "country"},
			FillNullFields:  []string{"email", "phone", "address"},
		},
		Merge: scd.MergeConfig{
			Table:      "customers",
			Keys:       []string{"customer_id"},
			SequenceBy: model.ColCleansedTS,
			TrackHistoryExceptColumns: []string{
				model.ColIngestedFile,
				model.ColIngestionTS,
				model.ColCleansedTS,
				model.ColQualityFlags,
				model.ColQualityScore,
			},
		},
	}
}
