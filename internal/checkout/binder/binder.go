// Package binder converts the flat checkout form into an order graph. The
// form is prefix-scoped: order.* scalars, cardcontact.* billing address,
// deliverycontact.* delivery address, card.* payment details.
//
// Binding is deterministic and never aborts: every step runs against
// best-effort partial data and records its own errors into a shared set.
// The caller accepts the order only when the set is empty.
package binder

import (
	"context"
	"errors"
	"net/url"

	"github.com/google/uuid"

	catalogstore "emporia/internal/catalog/store"
	"emporia/internal/payment/cardsecurity"
	"emporia/internal/shop/models"
	"emporia/pkg/platform/sentinel"
	"emporia/pkg/requestcontext"
)

const (
	prefixOrder    = "order"
	prefixBilling  = "cardcontact"
	prefixDelivery = "deliverycontact"
	prefixCard     = "card"
)

type Binder struct {
	countries catalogstore.CountryStore
	encryptor cardsecurity.Encryptor
}

func New(countries catalogstore.CountryStore, encryptor cardsecurity.Encryptor) *Binder {
	return &Binder{countries: countries, encryptor: encryptor}
}

// Bind builds an order from the form. The returned order is always
// non-nil, partially populated when the error set is non-empty, so the
// checkout page can re-render with the customer's input preserved.
func (b *Binder) Bind(ctx context.Context, values url.Values) (*models.Order, *ErrorSet) {
	errs := NewErrorSet()
	form := NewForm(values, errs)

	order := &models.Order{
		Status:    models.OrderStatusCreated,
		CreatedAt: requestcontext.Now(ctx),
	}

	b.bindOrder(order, form)
	b.bindBillingContact(order, form)
	b.bindDeliveryContact(order, form)
	b.resolveCountries(ctx, order, errs)
	b.bindCard(order, form, errs)

	return order, errs
}

func (b *Binder) bindOrder(order *models.Order, form *Form) {
	order.Email = form.RequiredString(prefixOrder, "email", "Email")
	order.UseCardHolderContact = form.Bool(prefixOrder, "usecardholdercontact")
	order.PayByTelephone = form.Bool(prefixOrder, "paybytelephone")

	if raw := form.RequiredString(prefixOrder, "basketid", "Basket"); raw != "" {
		basketID, err := uuid.Parse(raw)
		if err != nil {
			form.errs.Add(fieldKey(prefixOrder, "basketid"), KindConversion, "Basket reference is invalid")
		} else {
			order.Basket.ID = basketID
		}
	}

	confirm := form.String(prefixOrder, "emailconfirm")
	if order.Email != confirm {
		form.errs.Add(fieldKey(prefixOrder, "email"), KindMismatch, "Email and Confirm Email do not match")
	}
}

func (b *Binder) bindBillingContact(order *models.Order, form *Form) {
	order.Billing = bindContact(form, prefixBilling)
}

func (b *Binder) bindDeliveryContact(order *models.Order, form *Form) {
	if order.UseCardHolderContact {
		// Delivery reuses the billing contact; the delivery prefix is
		// ignored entirely.
		return
	}
	contact := bindContact(form, prefixDelivery)
	order.Delivery = &contact
}

func bindContact(form *Form, prefix string) models.Contact {
	return models.Contact{
		FirstName: form.RequiredString(prefix, "firstname", "First name"),
		LastName:  form.RequiredString(prefix, "lastname", "Last name"),
		Address1:  form.RequiredString(prefix, "address1", "Address"),
		Address2:  form.String(prefix, "address2"),
		Town:      form.RequiredString(prefix, "town", "Town"),
		County:    form.String(prefix, "county"),
		Postcode:  form.RequiredString(prefix, "postcode", "Postcode"),
		Telephone: form.String(prefix, "telephone"),
		CountryID: form.Int(prefix, "countryid", "Country"),
	}
}

// resolveCountries attaches country records to every bound contact. This is
// a guaranteed step independent of the contact field binding: it runs even
// when the same contact recorded errors above.
func (b *Binder) resolveCountries(ctx context.Context, order *models.Order, errs *ErrorSet) {
	b.resolveCountry(ctx, &order.Billing, prefixBilling, errs)
	if order.Delivery != nil {
		b.resolveCountry(ctx, order.Delivery, prefixDelivery, errs)
	}
}

func (b *Binder) resolveCountry(ctx context.Context, contact *models.Contact, prefix string, errs *ErrorSet) {
	if contact.CountryID == 0 || contact.Country != nil {
		return
	}
	country, err := b.countries.GetByID(ctx, contact.CountryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			errs.Add(fieldKey(prefix, "countryid"), KindDomainRule, "Country is not recognised")
			return
		}
		errs.Add(fieldKey(prefix, "countryid"), KindDomainRule, "Country could not be resolved")
		return
	}
	contact.Country = &country
}

func (b *Binder) bindCard(order *models.Order, form *Form, errs *ErrorSet) {
	if order.PayByTelephone {
		// No card is collected and the encryptor is never invoked.
		return
	}

	card := &models.Card{
		TypeID:       form.RequiredInt(prefixCard, "cardtypeid", "Card type"),
		Holder:       form.RequiredString(prefixCard, "holder", "Card holder"),
		Number:       form.RequiredString(prefixCard, "number", "Card number"),
		ExpiryMonth:  form.RequiredInt(prefixCard, "expirymonth", "Expiry month"),
		ExpiryYear:   form.RequiredInt(prefixCard, "expiryyear", "Expiry year"),
		IssueNumber:  form.String(prefixCard, "issuenumber"),
		SecurityCode: form.RequiredString(prefixCard, "securitycode", "Security code"),
	}
	order.Card = card

	// Encrypt exactly once, and only a successfully bound card: a card that
	// recorded binding errors never reaches the encryptor, and the order it
	// hangs off will be rejected by the caller anyway.
	if errs.HasPrefix(prefixCard + ".") {
		return
	}
	if err := b.encryptor.EncryptCard(card); err != nil {
		errs.Add(fieldKey(prefixCard, "number"), KindDomainRule, "Card details could not be secured")
	}
}
