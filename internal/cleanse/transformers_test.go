package cleanse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStandardizePostalCode(t *testing.T) {
	assert.Equal(t, "018956", StandardizePostalCode("18956"))
	assert.Equal(t, "001234", StandardizePostalCode("1234"))
	assert.Equal(t, "123456", StandardizePostalCode("123 456"))
	assert.Equal(t, "123456", StandardizePostalCode("123456"))
	// Non-numeric input comes back cleaned so the validator flags it.
	assert.Equal(t, "12A456", StandardizePostalCode("12A456"))
	assert.Nil(t, StandardizePostalCode(nil))
}

func TestUppercaseTrim(t *testing.T) {
	assert.Equal(t, "S1234567D", UppercaseTrim("  s1234567d "))
	assert.Equal(t, "JANE DOE", UppercaseTrim("jane doe"))
	assert.Nil(t, UppercaseTrim(nil))
	assert.Equal(t, 42, UppercaseTrim(42))
}

func TestNormalizeCurrency(t *testing.T) {
	assert.Equal(t, "CNY", NormalizeCurrency("RMB"))
	assert.Equal(t, "CNY", NormalizeCurrency("rmb"))
	assert.Equal(t, "JPY", NormalizeCurrency("YEN"))
	assert.Equal(t, "USD", NormalizeCurrency("usd"))
	assert.Equal(t, "EUR", NormalizeCurrency("eur"))
}

func TestNormalizeNationality(t *testing.T) {
	assert.Equal(t, "US", NormalizeNationality("USA"))
	assert.Equal(t, "GB", NormalizeNationality("uk"))
	assert.Equal(t, "SG", NormalizeNationality("Singapore"))
	assert.Equal(t, "CN", NormalizeNationality("china"))
	assert.Equal(t, "DE", NormalizeNationality("de"))
}

func TestNormalizeGender(t *testing.T) {
	assert.Equal(t, "M", NormalizeGender("m"))
	assert.Equal(t, "F", NormalizeGender(" F "))
	assert.Equal(t, "X", NormalizeGender("x"))
	assert.Nil(t, NormalizeGender("male"))
	assert.Nil(t, NormalizeGender(""))
}

func TestStandardizePhone(t *testing.T) {
	assert.Equal(t, "+6591234567", StandardizePhone("+65 9123 4567"))
	assert.Equal(t, "+6591234567", StandardizePhone("65-9123-4567"))
	assert.Equal(t, "+6591234567", StandardizePhone("91234567"))
	assert.Equal(t, "+65912345678", StandardizePhone("0912345678"))
	// Unrecognized shape: stripped only.
	assert.Equal(t, "123", StandardizePhone("123"))
}

func TestExtractPostalCode(t *testing.T) {
	assert.Equal(t, "018956", ExtractPostalCode("10 Bayfront Ave, Singapore 018956"))
	assert.Equal(t, "123456", ExtractPostalCode("Blk 1 #01-01 123456 Singapore"))
	assert.Nil(t, ExtractPostalCode("no postal here"))
	// Seven-digit runs are not postal codes.
	assert.Nil(t, ExtractPostalCode("call 91234567"))
	assert.Nil(t, ExtractPostalCode(nil))
}

func TestTransformerIdempotence(t *testing.T) {
	r := NewTransformerRegistry()
	inputs := map[string]any{
		"standardize_postal_code": "18956",
		"standardize_nric":        " s1234567d",
		"normalize_currency":      "RMB",
		"normalize_nationality":   "Singapore",
		"normalize_gender":        "m",
		"normalize_name":          " jane doe ",
		"standardize_phone":       "9123 4567",
		"uppercase_trim":          " abc ",
	}
	for name, in := range inputs {
		fn, err := r.Get(name)
		assert.NoError(t, err)
		once := fn(in)
		twice := fn(once)
		assert.Equal(t, once, twice, name)
	}
}
