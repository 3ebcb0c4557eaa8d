package mask

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/refinery-cli/internal/model"
)

// FullMask is the fully-redacted output for most field types.
const FullMask = "***"

// MaskFunc redacts one field value. Auxiliary context is limited to
// other columns of the same record (address masking reads the postal
// code out of the address itself). Maskers are pure, deterministic, and
// never fail: malformed input falls through to the full mask.
type MaskFunc func(value string, rec model.Record) string

// FieldMasker holds the partial and full redactions for one field type.
type FieldMasker struct {
	Partial MaskFunc
	Full    MaskFunc
}

// Registry maps masker names (field types) to their implementations.
type Registry struct {
	maskers map[string]FieldMasker
	order   []string
}

// NewRegistry returns a registry populated with the built-in maskers.
func NewRegistry() *Registry {
	r := &Registry{maskers: make(map[string]FieldMasker)}
	r.Register("email", FieldMasker{Partial: MaskEmailPartial, Full: maskEmailFull})
	r.Register("phone", FieldMasker{Partial: MaskPhonePartial, Full: constMask})
	r.Register("nric", FieldMasker{Partial: MaskNRICPartial, Full: constMask})
	r.Register("address", FieldMasker{Partial: MaskAddressPartial, Full: constMask})
	r.Register("ssn", FieldMasker{Partial: MaskSSNPartial, Full: constMask})
	return r
}

// Register adds or replaces a named masker.
func (r *Registry) Register(name string, m FieldMasker) {
	if _, ok := r.maskers[name]; !ok {
		r.order = append(r.order, name)
	}
	r.maskers[name] = m
}

// Get returns the named masker.
func (r *Registry) Get(name string) (FieldMasker, error) {
	m, ok := r.maskers[name]
	if !ok {
		return FieldMasker{}, eris.Errorf("mask: unknown masker %q", name)
	}
	return m, nil
}

// Names returns registered masker names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func constMask(string, model.Record) string { return FullMask }

func maskEmailFull(string, model.Record) string { return "***@***" }

// MaskEmailPartial keeps the first character of the local part and the
// full domain: u***@domain.com.
func MaskEmailPartial(value string, rec model.Record) string {
	at := strings.Index(value, "@")
	if at < 1 || at == len(value)-1 {
		return maskEmailFull(value, rec)
	}
	return value[:1] + "***@" + value[at+1:]
}

// MaskPhonePartial keeps the dial prefix and last four digits:
// +659 ****4567.
func MaskPhonePartial(value string, rec model.Record) string {
	if len(value) < 8 {
		return FullMask
	}
	return value[:4] + " ****" + value[len(value)-4:]
}

// MaskNRICPartial keeps the prefix letter and last three characters:
// S****67D.
func MaskNRICPartial(value string, rec model.Record) string {
	if len(value) < 9 {
		return FullMask
	}
	return value[:1] + "****" + value[len(value)-3:]
}

var postalRe = regexp.MustCompile(`\b(\d{6})\b`)

// MaskAddressPartial keeps only the postal code: *** Singapore 018989.
func MaskAddressPartial(value string, rec model.Record) string {
	m := postalRe.FindStringSubmatch(value)
	if m == nil {
		return FullMask
	}
	return "*** Singapore " + m[1]
}

// MaskSSNPartial keeps the last four digits: ***-**-6789.
func MaskSSNPartial(value string, rec model.Record) string {
	if len(value) < 4 {
		return FullMask
	}
	return "***-**-" + value[len(value)-4:]
}
