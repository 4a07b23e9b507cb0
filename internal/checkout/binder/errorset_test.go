package binder

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorSet(t *testing.T) {
	t.Run("nil set is empty and safe", func(t *testing.T) {
		var s *ErrorSet
		assert.True(t, s.Empty())
		assert.Zero(t, s.Len())
		assert.Empty(t, s.Primary())
		assert.Nil(t, s.For("order.email"))
		assert.False(t, s.HasPrefix("card."))
		assert.Nil(t, s.All())
	})

	t.Run("primary is the first recorded message", func(t *testing.T) {
		s := NewErrorSet()
		s.Add("order.email", KindRequired, "Email is required")
		s.Addf("card.number", KindConversion, "%s must be a number", "Card number")

		assert.Equal(t, "Email is required", s.Primary())
		assert.Equal(t, 2, s.Len())
		assert.Equal(t, []string{"Email is required"}, s.For("order.email"))
		assert.True(t, s.HasPrefix("card."))
		assert.False(t, s.HasPrefix("deliverycontact."))
	})
}

func TestForm(t *testing.T) {
	values := url.Values{
		"order.email":          {"  jane@example.com  "},
		"order.quantity":       {"3"},
		"order.bad":            {"NaN"},
		"order.usecardholder1": {"on"},
		"order.usecardholder2": {"TRUE"},
		"order.usecardholder3": {"no"},
	}
	errs := NewErrorSet()
	form := NewForm(values, errs)

	t.Run("strings are trimmed", func(t *testing.T) {
		assert.Equal(t, "jane@example.com", form.String("order", "email"))
	})

	t.Run("required records missing fields", func(t *testing.T) {
		assert.Empty(t, form.RequiredString("order", "absent", "Absent"))
		assert.Equal(t, []string{"Absent is required"}, errs.For("order.absent"))
	})

	t.Run("ints parse or record conversion errors", func(t *testing.T) {
		assert.Equal(t, 3, form.Int("order", "quantity", "Quantity"))
		assert.Zero(t, form.Int("order", "absent2", "Absent"), "absence is zero, not an error")
		assert.Empty(t, errs.For("order.absent2"))
		assert.Zero(t, form.Int("order", "bad", "Bad"))
		assert.Equal(t, []string{"Bad must be a number"}, errs.For("order.bad"))
	})

	t.Run("bools follow checkbox semantics", func(t *testing.T) {
		assert.True(t, form.Bool("order", "usecardholder1"))
		assert.True(t, form.Bool("order", "usecardholder2"))
		assert.False(t, form.Bool("order", "usecardholder3"))
		assert.False(t, form.Bool("order", "absent3"))
	})
}
