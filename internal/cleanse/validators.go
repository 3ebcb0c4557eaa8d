package cleanse

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/refinery-cli/internal/model"
)

// ValidatorFunc is a pure predicate over a single field value. It must be
// total: wrong-typed or malformed input is a failed validation, never an
// error. Nulls pass trivially unless the validator documents otherwise.
type ValidatorFunc func(value any) bool

// ValidatorRegistry maps stable validator names to implementations.
// Table configs reference validators by these names.
type ValidatorRegistry struct {
	funcs map[string]ValidatorFunc
	order []string
}

// NewValidatorRegistry returns a registry populated with the built-in
// validators.
func NewValidatorRegistry() *ValidatorRegistry {
	r := &ValidatorRegistry{funcs: make(map[string]ValidatorFunc)}
	r.Register("singapore_postal_code", ValidateSingaporePostalCode)
	r.Register("singapore_nric", ValidateSingaporeNRIC)
	r.Register("nric_9char", ValidateNRIC9Char)
	r.Register("currency_code", ValidateCurrencyCode)
	r.Register("nationality_code", ValidateNationalityCode)
	r.Register("gender", ValidateGender)
	r.Register("email", ValidateEmail)
	return r
}

// Register adds or replaces a named validator.
func (r *ValidatorRegistry) Register(name string, fn ValidatorFunc) {
	if _, ok := r.funcs[name]; !ok {
		r.order = append(r.order, name)
	}
	r.funcs[name] = fn
}

// Get returns the named validator.
func (r *ValidatorRegistry) Get(name string) (ValidatorFunc, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return nil, eris.Errorf("cleanse: unknown validator %q", name)
	}
	return fn, nil
}

// Names returns all registered validator names in registration order.
func (r *ValidatorRegistry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// isNull treats nil and the fill-null sentinel as null so that cleansed
// output can be reprocessed without changing quality results.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == model.NullSentinel
}

// asString returns the value as a string. Non-string scalars are not
// coerced: a validator seeing the wrong type fails the check.
func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

var (
	spaceRe  = regexp.MustCompile(`\s+`)
	digitsRe = regexp.MustCompile(`^\d{6}$`)
	nricRe   = regexp.MustCompile(`^[STFGM]\d{7}[A-Z]$`)
	nric9Re  = regexp.MustCompile(`^[A-Z0-9]{9}$`)
	emailRe  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// validCurrencies are the supported currency codes, including the
// pre-normalization aliases RMB and YEN.
var validCurrencies = map[string]bool{
	"USD": true, "RMB": true, "YEN": true, "SGD": true, "CNY": true, "JPY": true,
}

// validNationalities are the supported country codes, including the
// pre-normalization aliases (USA, UK).
var validNationalities = map[string]bool{
	"USA": true, "US": true, "UK": true, "GB": true,
	"SG": true, "CN": true, "TW": true, "FR": true, "DK": true,
}

// ValidateSingaporePostalCode checks for exactly 6 digits after removing
// internal whitespace. Leading zeros are valid.
func ValidateSingaporePostalCode(v any) bool {
	if isNull(v) {
		return true
	}
	s, ok := asString(v)
	if !ok {
		return false
	}
	cleaned := spaceRe.ReplaceAllString(s, "")
	return digitsRe.MatchString(cleaned)
}

// ValidateSingaporeNRIC checks NRIC/FIN format (prefix S/T/F/G/M, 7
// digits, checksum letter) and verifies the checksum.
func ValidateSingaporeNRIC(v any) bool {
	if isNull(v) {
		return true
	}
	s, ok := asString(v)
	if !ok || !nricRe.MatchString(s) {
		return false
	}
	return nricChecksum(s) == s[8:9]
}

// nricChecksum computes the expected checksum letter for a 9-character
// NRIC, or "" when the prefix is unknown.
func nricChecksum(nric string) string {
	prefix := nric[:1]
	weights := [7]int{2, 7, 6, 5, 4, 3, 2}

	total := 0
	for i, w := range weights {
		total += int(nric[1+i]-'0') * w
	}
	switch prefix {
	case "T", "G", "M":
		total += 4
	}

	idx := total % 11
	var table string
	switch prefix {
	case "S", "T":
		table = "JZIHGFEDCBA"
	case "F", "G":
		table = "XWUTRQPNMLK"
	case "M":
		table = "KLJNPQRTUWX"
	default:
		return ""
	}
	return table[idx : idx+1]
}

// ValidateNRIC9Char checks that an NRIC is exactly 9 uppercase
// alphanumeric characters, without verifying the checksum.
func ValidateNRIC9Char(v any) bool {
	if isNull(v) {
		return true
	}
	s, ok := asString(v)
	return ok && nric9Re.MatchString(s)
}

// ValidateCurrencyCode checks the value against the supported currency
// set (case-insensitive).
func ValidateCurrencyCode(v any) bool {
	if isNull(v) {
		return true
	}
	s, ok := asString(v)
	return ok && validCurrencies[strings.ToUpper(strings.TrimSpace(s))]
}

// ValidateNationalityCode checks the value against the supported country
// set (case-insensitive).
func ValidateNationalityCode(v any) bool {
	if isNull(v) {
		return true
	}
	s, ok := asString(v)
	return ok && validNationalities[strings.ToUpper(strings.TrimSpace(s))]
}

// ValidateGender accepts M, F or X (case-insensitive).
func ValidateGender(v any) bool {
	if isNull(v) {
		return true
	}
	s, ok := asString(v)
	if !ok {
		return false
	}
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "M", "F", "X":
		return true
	}
	return false
}

// ValidateEmail checks basic email shape. Unlike the other validators a
// null value fails: an email is required wherever this check is declared.
func ValidateEmail(v any) bool {
	if isNull(v) {
		return false
	}
	s, ok := asString(v)
	return ok && emailRe.MatchString(s)
}
