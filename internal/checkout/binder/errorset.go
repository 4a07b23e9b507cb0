package binder

import "fmt"

// Kind classifies a field error.
type Kind string

const (
	// KindRequired marks a missing required field.
	KindRequired Kind = "required"
	// KindConversion marks a value that would not parse into the target
	// type.
	KindConversion Kind = "conversion"
	// KindMismatch marks a cross-field disagreement.
	KindMismatch Kind = "mismatch"
	// KindDomainRule marks a business-rule refusal recorded during
	// binding.
	KindDomainRule Kind = "domain_rule"
)

// FieldError is one recorded problem against one form field.
type FieldError struct {
	Field   string `json:"field"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// ErrorSet accumulates field errors across binding steps. Binding never
// aborts on the first error; emptiness of the set is the caller's sole
// accept/reject signal.
type ErrorSet struct {
	errs []FieldError
}

func NewErrorSet() *ErrorSet {
	return &ErrorSet{}
}

func (s *ErrorSet) Add(field string, kind Kind, message string) {
	s.errs = append(s.errs, FieldError{Field: field, Kind: kind, Message: message})
}

func (s *ErrorSet) Addf(field string, kind Kind, format string, args ...any) {
	s.Add(field, kind, fmt.Sprintf(format, args...))
}

// Empty reports whether binding succeeded.
func (s *ErrorSet) Empty() bool {
	return s == nil || len(s.errs) == 0
}

func (s *ErrorSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.errs)
}

// Primary returns the first recorded message, the one surfaced when the
// checkout page re-renders.
func (s *ErrorSet) Primary() string {
	if s.Empty() {
		return ""
	}
	return s.errs[0].Message
}

// For returns the messages recorded against one field.
func (s *ErrorSet) For(field string) []string {
	if s == nil {
		return nil
	}
	var msgs []string
	for _, e := range s.errs {
		if e.Field == field {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

// HasPrefix reports whether any error was recorded under the given field
// prefix (e.g. "card.").
func (s *ErrorSet) HasPrefix(prefix string) bool {
	if s == nil {
		return false
	}
	for _, e := range s.errs {
		if len(e.Field) >= len(prefix) && e.Field[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

// All returns the recorded errors in insertion order.
func (s *ErrorSet) All() []FieldError {
	if s == nil {
		return nil
	}
	return append([]FieldError(nil), s.errs...)
}
