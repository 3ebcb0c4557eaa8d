package cleanse

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// TransformerFunc is a pure, idempotent standardization over a single
// field value: t(t(x)) = t(x). Nulls pass through unchanged.
type TransformerFunc func(value any) any

// TransformerRegistry maps stable transformer names to implementations.
type TransformerRegistry struct {
	funcs map[string]TransformerFunc
	order []string
}

// NewTransformerRegistry returns a registry populated with the built-in
// transformers.
func NewTransformerRegistry() *TransformerRegistry {
	r := &TransformerRegistry{funcs: make(map[string]TransformerFunc)}
	r.Register("standardize_postal_code", StandardizePostalCode)
	r.Register("standardize_nric", UppercaseTrim)
	r.Register("normalize_currency", NormalizeCurrency)
	r.Register("normalize_nationality", NormalizeNationality)
	r.Register("normalize_gender", NormalizeGender)
	r.Register("normalize_name", NormalizeName)
	r.Register("standardize_phone", StandardizePhone)
	r.Register("extract_postal_code", ExtractPostalCode)
	r.Register("uppercase_trim", UppercaseTrim)
	return r
}

// Register adds or replaces a named transformer.
func (r *TransformerRegistry) Register(name string, fn TransformerFunc) {
	if _, ok := r.funcs[name]; !ok {
		r.order = append(r.order, name)
	}
	r.funcs[name] = fn
}

// Get returns the named transformer.
func (r *TransformerRegistry) Get(name string) (TransformerFunc, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, eris.Errorf("cleanse: unknown transformer %q", name)
	}
	return fn, nil
}

// Names returns all registered transformer names in registration order.
func (r *TransformerRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

var (
	allDigitsRe = regexp.MustCompile(`^\d+$`)
	postalRe    = regexp.MustCompile(`\b(\d{6})\b`)
	nonPhoneRe  = regexp.MustCompile(`[^\d+]`)
	upperCaser  = cases.Upper(language.Und)
)

// currencyAliases maps accepted spellings to 3-letter ISO codes.
var currencyAliases = map[string]string{
	"USD": "USD",
	"RMB": "CNY", "CNY": "CNY",
	"YEN": "JPY", "JPY": "JPY",
	"SGD": "SGD",
}

// nationalityAliases maps accepted spellings to ISO 2-letter codes.
var nationalityAliases = map[string]string{
	"USA": "US", "US": "US",
	"UK": "GB", "GB": "GB",
	"SG": "SG", "SINGAPORE": "SG",
	"CN": "CN", "CHINA": "CN",
	"TW": "TW", "TAIWAN": "TW",
	"FR": "FR", "FRANCE": "FR",
	"DK": "DK", "DENMARK": "DK",
}

// transformString lifts a string transform into a TransformerFunc that
// passes nulls and non-strings through untouched.
func transformString(fn func(string) any) TransformerFunc {
	return func(v any) any {
		if isNull(v) {
			return v
		}
		s, ok := v.(string)
		if !ok {
			return v
		}
		return fn(s)
	}
}

// StandardizePostalCode zero-pads Singapore postal codes to 6 digits
// after removing whitespace. Non-numeric input is returned cleaned but
// unpadded so the validator can flag it.
var StandardizePostalCode = transformString(func(s string) any {
	cleaned := spaceRe.ReplaceAllString(s, "")
	if allDigitsRe.MatchString(cleaned) && len(cleaned) <= 6 {
		return strings.Repeat("0", 6-len(cleaned)) + cleaned
	}
	return cleaned
})

// UppercaseTrim trims whitespace and uppercases. Used for NRIC and name
// standardization.
var UppercaseTrim = transformString(func(s string) any {
	return upperCaser.String(strings.TrimSpace(s))
})

// NormalizeName is UppercaseTrim under its own registry name so table
// configs read naturally.
var NormalizeName = UppercaseTrim

// NormalizeCurrency maps currency spellings to ISO 4217 codes. Unknown
// codes are uppercased and trimmed but otherwise kept.
var NormalizeCurrency = transformString(func(s string) any {
	u := strings.ToUpper(strings.TrimSpace(s))
	if iso, ok := currencyAliases[u]; ok {
		return iso
	}
	return u
})

// NormalizeNationality maps country spellings to ISO 3166-1 alpha-2
// codes. Unknown codes are uppercased and trimmed but otherwise kept.
var NormalizeNationality = transformString(func(s string) any {
	u := strings.ToUpper(strings.TrimSpace(s))
	if iso, ok := nationalityAliases[u]; ok {
		return iso
	}
	return u
})

// NormalizeGender uppercases valid gender codes and nulls out anything
// that is not M, F or X.
var NormalizeGender = transformString(func(s string) any {
	u := strings.ToUpper(strings.TrimSpace(s))
	switch u {
	case "M", "F", "X":
		return u
	}
	return nil
})

// StandardizePhone normalizes phone numbers to the +65XXXXXXXX Singapore
// format. Inputs that do not match a known shape are returned with
// non-dial characters stripped.
var StandardizePhone = transformString(func(s string) any {
	cleaned := nonPhoneRe.ReplaceAllString(s, "")
	switch {
	case strings.HasPrefix(cleaned, "+65"):
		return cleaned
	case strings.HasPrefix(cleaned, "65"):
		return "+" + cleaned
	case strings.HasPrefix(cleaned, "0"):
		return "+65" + cleaned[1:]
	case len(cleaned) == 8:
		return "+65" + cleaned
	}
	return cleaned
})

// ExtractPostalCode pulls the first 6-digit run out of an address string.
// Returns null when no postal code is present.
var ExtractPostalCode = transformString(func(s string) any {
	m := postalRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	return m[1]
})
