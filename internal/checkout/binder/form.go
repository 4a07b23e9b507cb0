package binder

import (
	"net/url"
	"strconv"
	"strings"
)

// Form wraps flat form values with prefix-scoped, error-accumulating
// accessors. Every accessor records its own failures into the shared set
// and returns a best-effort zero value, so later binding steps always run.
type Form struct {
	values url.Values
	errs   *ErrorSet
}

func NewForm(values url.Values, errs *ErrorSet) *Form {
	return &Form{values: values, errs: errs}
}

func fieldKey(prefix, field string) string {
	if prefix == "" {
		return field
	}
	return prefix + "." + field
}

// String returns the trimmed value for prefix.field, empty when absent.
func (f *Form) String(prefix, field string) string {
	return strings.TrimSpace(f.values.Get(fieldKey(prefix, field)))
}

// RequiredString records a required-missing error when the field is empty.
func (f *Form) RequiredString(prefix, field, label string) string {
	v := f.String(prefix, field)
	if v == "" {
		f.errs.Addf(fieldKey(prefix, field), KindRequired, "%s is required", label)
	}
	return v
}

// Int parses prefix.field as an integer; absence yields zero, garbage
// records a conversion error.
func (f *Form) Int(prefix, field, label string) int {
	v := f.String(prefix, field)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		f.errs.Addf(fieldKey(prefix, field), KindConversion, "%s must be a number", label)
		return 0
	}
	return n
}

// RequiredInt records required-missing on absence and conversion failure on
// garbage.
func (f *Form) RequiredInt(prefix, field, label string) int {
	v := f.String(prefix, field)
	if v == "" {
		f.errs.Addf(fieldKey(prefix, field), KindRequired, "%s is required", label)
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		f.errs.Addf(fieldKey(prefix, field), KindConversion, "%s must be a number", label)
		return 0
	}
	return n
}

// Bool treats "true", "on", and "1" as set; anything else, including
// absence, is false. Checkbox semantics.
func (f *Form) Bool(prefix, field string) bool {
	switch strings.ToLower(f.String(prefix, field)) {
	case "true", "on", "1":
		return true
	}
	return false
}
