package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	basketservice "emporia/internal/basket/service"
	basketstore "emporia/internal/basket/store"
	catalogstore "emporia/internal/catalog/store"
	"emporia/internal/checkout/binder"
	"emporia/internal/notification"
	orderstore "emporia/internal/order/store"
	"emporia/internal/postage"
	"emporia/internal/shop/models"
	"emporia/internal/user/session"
	userservice "emporia/internal/user/service"
	userstore "emporia/internal/user/store"
	dErrors "emporia/pkg/domain-errors"
	"emporia/pkg/platform/tx"
)

type sentMail struct {
	to      []string
	subject string
	body    string
}

// recordingSender captures outbound email instead of delivering it.
type recordingSender struct {
	sent []sentMail
	fail error
}

func (r *recordingSender) Send(ctx context.Context, to []string, subject, htmlBody string) error {
	if r.fail != nil {
		return r.fail
	}
	r.sent = append(r.sent, sentMail{to: to, subject: subject, body: htmlBody})
	return nil
}

// failRunner refuses every transaction without invoking the callback.
type failRunner struct{ err error }

func (r failRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.err
}

type CheckoutSuite struct {
	suite.Suite
	baskets   *basketstore.InMemory
	orders    *orderstore.InMemory
	sizes     *catalogstore.InMemorySizes
	countries *catalogstore.InMemoryCountries
	cardTypes *catalogstore.InMemoryCardTypes
	identity  *userservice.Service
	basketSvc *basketservice.Service
	sender    *recordingSender
	service   *Service
}

func TestCheckoutSuite(t *testing.T) {
	suite.Run(t, new(CheckoutSuite))
}

func (s *CheckoutSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.baskets = basketstore.NewInMemory()
	s.orders = orderstore.NewInMemory()
	s.sizes = catalogstore.NewInMemorySizes()
	s.countries = catalogstore.NewInMemoryCountries()
	s.cardTypes = catalogstore.NewInMemoryCardTypes(
		models.CardType{ID: 1, Name: "Visa"},
	)

	tee := models.Product{ID: 1, Name: "Classic Tee", Price: decimal.NewFromFloat(18.50), Weight: decimal.NewFromFloat(0.3)}
	s.sizes.Seed(models.Size{ID: 1, Name: "S", IsInStock: true, IsActive: true, Product: tee})
	s.countries.Seed(models.Country{ID: 1, Name: "United Kingdom", IsActive: true, Position: 1, PostageMultiplier: decimal.NewFromInt(1)})

	users := userstore.NewInMemory()
	sessions := session.NewInMemory()
	s.identity = userservice.New(users, sessions, []byte("test-signing-key"), logger)
	s.basketSvc = basketservice.New(s.baskets, s.sizes, s.countries, s.identity, tx.PassthroughRunner{}, 1, nil, logger)

	s.sender = &recordingSender{}
	mailer := notification.NewConfirmationMailer(s.sender, "Emporia", "orders@emporia.example", logger)
	postageSvc := postage.NewCalculator(s.sizes, s.countries, decimal.NewFromFloat(1.25))

	s.service = New(
		s.baskets, s.basketSvc, s.orders, s.sizes, s.countries, s.cardTypes,
		postageSvc, s.identity, mailer, nil, tx.PassthroughRunner{},
		nil, logger,
	)
}

// customerWithBasket persists a customer holding two tees.
func (s *CheckoutSuite) customerWithBasket() (models.Identity, models.Basket) {
	ctx := context.Background()
	user, err := s.identity.CreateNewCustomer(ctx)
	s.Require().NoError(err)
	token := uuid.NewString()
	s.Require().NoError(s.identity.SetContextUserTo(ctx, token, user))
	ident := models.Identity{SessionToken: token, User: user}

	result, err := s.basketSvc.Update(ctx, ident, 1, 2)
	s.Require().NoError(err)
	return ident, result.Basket
}

// boundOrder is what the binder produces for a clean card submission.
func (s *CheckoutSuite) boundOrder(basketID uuid.UUID) *models.Order {
	return &models.Order{
		Status:               models.OrderStatusCreated,
		Email:                "jane@example.com",
		UseCardHolderContact: true,
		Basket:               models.Basket{ID: basketID},
		Billing: models.Contact{
			FirstName: "Jane",
			LastName:  "Doe",
			Address1:  "1 High Street",
			Town:      "London",
			Postcode:  "N1 1AA",
			CountryID: 1,
		},
		Card: &models.Card{TypeID: 1, Holder: "JANE DOE", Number: "enc:x", SecurityCode: "enc:y", Encrypted: true},
	}
}

func (s *CheckoutSuite) TestPlaceOrder_Success() {
	ctx := context.Background()
	ident, basket := s.customerWithBasket()

	result, err := s.service.PlaceOrder(ctx, ident, s.boundOrder(basket.ID), binder.NewErrorSet())
	s.Require().NoError(err)
	s.Require().Nil(result.View)
	s.Equal(fmt.Sprintf("/orders/%d", result.OrderID), result.RedirectURL)

	s.Run("order is persisted with postage", func() {
		order, err := s.orders.GetByID(ctx, result.OrderID)
		s.Require().NoError(err)
		s.Equal(ident.User.ID, order.UserID)
		s.Equal("jane@example.com", order.Email)
		// 0.6kg rounds up to one whole unit at rate 1.25.
		s.True(order.Postage.Equal(decimal.NewFromFloat(1.25)), "got postage %s", order.Postage)
	})

	s.Run("basket is consumed and replaced", func() {
		consumed, err := s.baskets.GetByID(ctx, basket.ID)
		s.Require().NoError(err)
		s.Equal(result.OrderID, consumed.OrderID)

		fresh, err := s.basketSvc.CurrentBasket(ctx, ident)
		s.Require().NoError(err)
		s.NotEqual(basket.ID, fresh.ID)
		s.Empty(fresh.Items)
	})

	s.Run("exactly one confirmation goes to customer and shop", func() {
		s.Require().Len(s.sender.sent, 1)
		mail := s.sender.sent[0]
		s.Equal([]string{"jane@example.com", "orders@emporia.example"}, mail.to)
		s.Equal("Emporia: your order", mail.subject)
		s.Contains(mail.body, "Classic Tee - S")
	})

	s.Run("customer email is registered and cookie minted", func() {
		resolved, err := s.identity.CurrentIdentity(ctx, ident.SessionToken)
		s.Require().NoError(err)
		s.Equal("jane@example.com", resolved.User.Email)
		s.NotEmpty(result.AuthCookie)
	})
}

func (s *CheckoutSuite) TestPlaceOrder_RejectedSubmission() {
	ctx := context.Background()
	ident, basket := s.customerWithBasket()

	errs := binder.NewErrorSet()
	errs.Add("order.email", binder.KindMismatch, "Email and Confirm Email do not match")

	result, err := s.service.PlaceOrder(ctx, ident, s.boundOrder(basket.ID), errs)
	s.Require().NoError(err)

	s.Require().NotNil(result.View, "a rejected submission re-renders the form")
	s.Empty(result.RedirectURL)
	s.Equal("Email and Confirm Email do not match", result.View.ErrorMessage)
	s.Equal("jane@example.com", result.View.Order.Email, "customer input is preserved")
	s.Len(result.View.Lines, 1)

	s.Zero(s.orders.Count(), "no order may be created")
	untouched, err := s.baskets.GetByID(ctx, basket.ID)
	s.Require().NoError(err)
	s.Zero(untouched.OrderID, "basket must stay live")
	s.Len(untouched.Items, 1)
	s.Empty(s.sender.sent, "no email on rejection")
}

func (s *CheckoutSuite) TestPlaceOrder_Authorization() {
	ctx := context.Background()
	_, basket := s.customerWithBasket()
	other, _ := s.customerWithBasket()

	s.Run("another user's basket is forbidden", func() {
		_, err := s.service.PlaceOrder(ctx, other, s.boundOrder(basket.ID), binder.NewErrorSet())
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeForbidden))
	})

	s.Run("unknown basket is not found", func() {
		_, err := s.service.PlaceOrder(ctx, other, s.boundOrder(uuid.New()), binder.NewErrorSet())
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func (s *CheckoutSuite) TestPlaceOrder_CommitFailure() {
	ctx := context.Background()
	ident, basket := s.customerWithBasket()

	s.service.runner = failRunner{err: errors.New("connection reset")}

	_, err := s.service.PlaceOrder(ctx, ident, s.boundOrder(basket.ID), binder.NewErrorSet())
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeInternal))

	untouched, gerr := s.baskets.GetByID(ctx, basket.ID)
	s.Require().NoError(gerr)
	s.Zero(untouched.OrderID)
	s.Empty(s.sender.sent, "no email without a committed order")
}

func (s *CheckoutSuite) TestPlaceOrder_EmailFailureDoesNotUndoOrder() {
	ctx := context.Background()
	ident, basket := s.customerWithBasket()

	s.sender.fail = errors.New("smtp refused")

	result, err := s.service.PlaceOrder(ctx, ident, s.boundOrder(basket.ID), binder.NewErrorSet())
	s.Require().NoError(err, "a failed confirmation cannot undo the order")
	s.NotEmpty(result.RedirectURL)

	_, err = s.orders.GetByID(ctx, result.OrderID)
	s.NoError(err)
}

func (s *CheckoutSuite) TestIndex() {
	ctx := context.Background()
	ident, basket := s.customerWithBasket()

	view, err := s.service.Index(ctx, ident, basket.ID)
	s.Require().NoError(err)

	s.Require().NotNil(view.Order)
	s.True(view.Order.UseCardHolderContact, "delivery follows billing by default")
	s.Require().Len(view.Lines, 1)
	s.Equal("Classic Tee - S", view.Lines[0].Description)
	s.Equal(2, view.Lines[0].Quantity)
	s.True(view.Lines[0].Total.Equal(decimal.NewFromFloat(37.00)), "got %s", view.Lines[0].Total)
	// 37.00 goods + 1.25 postage.
	s.True(view.Total.Equal(decimal.NewFromFloat(38.25)), "got %s", view.Total)
	s.Len(view.Countries, 1)
	s.Len(view.CardTypes, 1)
	s.Empty(view.ErrorMessage)
}

func (s *CheckoutSuite) TestIndex_Authorization() {
	ctx := context.Background()
	_, basket := s.customerWithBasket()
	other, _ := s.customerWithBasket()

	_, err := s.service.Index(ctx, other, basket.ID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeForbidden))
}

func (s *CheckoutSuite) TestOrderDetail() {
	ctx := context.Background()
	ident, basket := s.customerWithBasket()

	placed, err := s.service.PlaceOrder(ctx, ident, s.boundOrder(basket.ID), binder.NewErrorSet())
	s.Require().NoError(err)

	s.Run("owner sees the order with priced lines", func() {
		order, lines, err := s.service.OrderDetail(ctx, ident, placed.OrderID)
		s.Require().NoError(err)
		s.Equal(placed.OrderID, order.ID)
		s.Require().Len(lines, 1)
		s.Equal(2, lines[0].Quantity)
	})

	s.Run("another user is forbidden", func() {
		other, _ := s.customerWithBasket()
		_, _, err := s.service.OrderDetail(ctx, other, placed.OrderID)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeForbidden))
	})

	s.Run("unknown order is not found", func() {
		_, _, err := s.service.OrderDetail(ctx, ident, 9999)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeNotFound))
	})
}
