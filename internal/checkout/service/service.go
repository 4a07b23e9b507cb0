// Package service orchestrates order placement: it inspects the binder's
// error set, transfers the basket into the order, commits both writes as
// one unit of work, and fires the compensating confirmation notification.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	basketstore "emporia/internal/basket/store"
	catalogstore "emporia/internal/catalog/store"
	"emporia/internal/checkout/binder"
	"emporia/internal/checkout/metrics"
	"emporia/internal/events"
	"emporia/internal/notification"
	orderstore "emporia/internal/order/store"
	"emporia/internal/postage"
	"emporia/internal/shop/models"
	dErrors "emporia/pkg/domain-errors"
	"emporia/pkg/platform/sentinel"
	"emporia/pkg/platform/tx"
	"emporia/pkg/requestcontext"
)

// BasketReplacer supplies the fresh basket that takes the consumed one's
// place inside the placement transaction.
type BasketReplacer interface {
	ReplaceForUser(ctx context.Context, userID uuid.UUID, countryID int) (models.Basket, error)
}

// Mailer renders and sends the order confirmation.
type Mailer interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order, lines []notification.Line) error
}

// IdentityRegistrar records the email a customer supplies at checkout and
// mints the authentication cookie for a newly identified guest.
type IdentityRegistrar interface {
	RegisterEmail(ctx context.Context, user models.User, address string) (models.User, error)
	SetAuthenticationCookie(email string) (string, error)
}

type Service struct {
	baskets   basketstore.BasketStore
	replacer  BasketReplacer
	orders    orderstore.OrderStore
	sizes     catalogstore.SizeStore
	countries catalogstore.CountryStore
	cardTypes catalogstore.CardTypeStore
	postage   postage.Service
	registrar IdentityRegistrar
	mailer    Mailer
	publisher *events.Publisher
	runner    tx.Runner
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

func New(
	baskets basketstore.BasketStore,
	replacer BasketReplacer,
	orders orderstore.OrderStore,
	sizes catalogstore.SizeStore,
	countries catalogstore.CountryStore,
	cardTypes catalogstore.CardTypeStore,
	postageSvc postage.Service,
	registrar IdentityRegistrar,
	mailer Mailer,
	publisher *events.Publisher,
	runner tx.Runner,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		baskets:   baskets,
		replacer:  replacer,
		orders:    orders,
		sizes:     sizes,
		countries: countries,
		cardTypes: cardTypes,
		postage:   postageSvc,
		registrar: registrar,
		mailer:    mailer,
		publisher: publisher,
		runner:    runner,
		metrics:   m,
		logger:    logger,
		tracer:    otel.Tracer("emporia/checkout"),
	}
}

// Line is one displayed basket row with its catalog description and line
// total.
type Line struct {
	ItemID      uuid.UUID       `json:"item_id"`
	SizeID      int             `json:"size_id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Total       decimal.Decimal `json:"total"`
}

// View is the checkout page model: the (draft or rejected) order, its
// basket, reference data for the form, and any error to surface.
type View struct {
	Order        *models.Order       `json:"order"`
	Basket       models.Basket       `json:"basket"`
	Lines        []Line              `json:"lines"`
	Total        decimal.Decimal     `json:"total"`
	Countries    []models.Country    `json:"countries"`
	CardTypes    []models.CardType   `json:"card_types"`
	ErrorMessage string              `json:"error_message,omitempty"`
	FieldErrors  []binder.FieldError `json:"field_errors,omitempty"`
}

// PlaceResult reports the outcome of a place-order submission. Exactly one
// of RedirectURL and View is set.
type PlaceResult struct {
	OrderID     int64
	RedirectURL string
	// AuthCookie is set when the customer became identifiable through the
	// email supplied on this order.
	AuthCookie string
	View       *View
}

// Index builds the checkout page for a basket: a default order with
// delivery-follows-billing preselected, computed postage, and the active
// country and card type lists.
func (s *Service) Index(ctx context.Context, ident models.Identity, basketID uuid.UUID) (View, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Index")
	defer span.End()

	basket, err := s.baskets.GetByID(ctx, basketID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return View{}, dErrors.Newf(dErrors.CodeNotFound, "basket %s not found", basketID)
		}
		return View{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not load basket")
	}
	if err := s.authorize(ident, basket.UserID); err != nil {
		return View{}, err
	}

	order := &models.Order{
		Status:               models.OrderStatusCreated,
		UseCardHolderContact: true,
		CreatedAt:            requestcontext.Now(ctx),
		UserID:               basket.UserID,
		Basket:               basket,
	}
	return s.buildView(ctx, order, basket, nil)
}

// PlaceOrder accepts the binder's output. A non-empty error set re-renders
// the checkout view with the customer's input and the primary error,
// touching no persisted state. An empty set commits the order and the
// basket replacement atomically, then sends the confirmation.
func (s *Service) PlaceOrder(ctx context.Context, ident models.Identity, order *models.Order, errs *binder.ErrorSet) (PlaceResult, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.PlaceOrder")
	defer span.End()

	start := requestcontext.Now(ctx)

	if !errs.Empty() {
		s.metrics.IncrementBinderRejections()
		view, err := s.rejectedView(ctx, order, errs)
		if err != nil {
			return PlaceResult{}, err
		}
		return PlaceResult{View: &view}, nil
	}

	basket, err := s.baskets.GetByID(ctx, order.Basket.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return PlaceResult{}, dErrors.Newf(dErrors.CodeNotFound, "basket %s not found", order.Basket.ID)
		}
		return PlaceResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not load basket")
	}
	if err := s.authorize(ident, basket.UserID); err != nil {
		return PlaceResult{}, err
	}
	if basket.OrderID != 0 {
		return PlaceResult{}, dErrors.Newf(dErrors.CodeConflict, "basket %s has already been ordered", basket.ID)
	}

	order.UserID = basket.UserID
	order.Basket = basket
	if err := s.postage.CalculateFor(ctx, order); err != nil {
		return PlaceResult{}, err
	}

	// Two aggregate writes, one commit. The commit is explicit inside
	// RunInTx because the generated order ID is needed immediately for the
	// confirmation and the redirect.
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.orders.Insert(ctx, order); err != nil {
			return err
		}
		if err := s.baskets.AttachToOrder(ctx, basket.ID, order.ID); err != nil {
			return err
		}
		_, err := s.replacer.ReplaceForUser(ctx, basket.UserID, basket.CountryID)
		return err
	})
	if err != nil {
		return PlaceResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "order could not be committed")
	}

	s.metrics.IncrementOrdersPlaced()
	s.metrics.ObservePlaceLatency(requestcontext.Now(ctx).Sub(start))

	// The order's email identifies a guest who had none before.
	result := PlaceResult{
		OrderID:     order.ID,
		RedirectURL: fmt.Sprintf("/orders/%d", order.ID),
	}
	hadEmail := ident.User.Email != ""
	if user, rerr := s.registrar.RegisterEmail(ctx, ident.User, order.Email); rerr != nil {
		s.logger.WarnContext(ctx, "could not register customer email",
			"user_id", ident.User.ID,
			"error", rerr,
		)
	} else if !hadEmail && user.Email != "" {
		cookie, cerr := s.registrar.SetAuthenticationCookie(user.Email)
		if cerr != nil {
			s.logger.WarnContext(ctx, "could not mint authentication cookie", "error", cerr)
		} else {
			result.AuthCookie = cookie
		}
	}
	s.logger.InfoContext(ctx, "order placed",
		"order_id", order.ID,
		"basket_id", basket.ID,
		"request_id", requestcontext.RequestID(ctx),
	)

	// Compensating notification: a delivery failure is reported but never
	// rolls back the committed order.
	lines, lerr := s.lines(ctx, basket)
	if lerr == nil {
		lerr = s.mailer.SendOrderConfirmation(ctx, order, mailLines(lines))
	}
	if lerr != nil {
		s.metrics.IncrementEmailFailures()
		s.logger.ErrorContext(ctx, "confirmation email failed",
			"order_id", order.ID,
			"error", lerr,
		)
	}

	s.publisher.OrderPlaced(ctx, order)

	return result, nil
}

// OrderDetail loads a placed order for its owner.
func (s *Service) OrderDetail(ctx context.Context, ident models.Identity, orderID int64) (*models.Order, []Line, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.Newf(dErrors.CodeNotFound, "order %d not found", orderID)
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load order")
	}
	if err := s.authorize(ident, order.UserID); err != nil {
		return nil, nil, err
	}

	basket, err := s.baskets.GetByID(ctx, order.Basket.ID)
	if err == nil {
		order.Basket = basket
	}
	lines, err := s.lines(ctx, order.Basket)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not load order lines")
	}
	return &order, lines, nil
}

func (s *Service) authorize(ident models.Identity, ownerID uuid.UUID) error {
	if ident.User.IsPlaceholder() || ident.User.ID != ownerID {
		return dErrors.New(dErrors.CodeForbidden, "you are not allowed to view this order")
	}
	return nil
}

// rejectedView reloads the basket and rebuilds the checkout view around
// the customer's rejected input.
func (s *Service) rejectedView(ctx context.Context, order *models.Order, errs *binder.ErrorSet) (View, error) {
	var basket models.Basket
	if order.Basket.ID != uuid.Nil {
		loaded, err := s.baskets.GetByID(ctx, order.Basket.ID)
		if err == nil {
			basket = loaded
			order.Basket = loaded
		}
	}
	view, err := s.buildView(ctx, order, basket, errs)
	if err != nil {
		return View{}, err
	}
	return view, nil
}

func (s *Service) buildView(ctx context.Context, order *models.Order, basket models.Basket, errs *binder.ErrorSet) (View, error) {
	// Postage is advisory on the view; a missing rate surfaces as the page
	// error rather than failing the render.
	errorMessage := errs.Primary()
	if perr := s.postage.CalculateFor(ctx, order); perr != nil && errorMessage == "" {
		errorMessage = dErrors.MessageFor(perr)
	}

	countries, err := s.countries.ListActive(ctx)
	if err != nil {
		return View{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not list countries")
	}
	cardTypes, err := s.cardTypes.List(ctx)
	if err != nil {
		return View{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not list card types")
	}
	lines, err := s.lines(ctx, basket)
	if err != nil {
		return View{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not load basket lines")
	}

	total := order.Postage
	for _, l := range lines {
		total = total.Add(l.Total)
	}

	return View{
		Order:        order,
		Basket:       basket,
		Lines:        lines,
		Total:        total,
		Countries:    countries,
		CardTypes:    cardTypes,
		ErrorMessage: errorMessage,
		FieldErrors:  errs.All(),
	}, nil
}

// lines joins basket items with their catalog sizes.
func (s *Service) lines(ctx context.Context, basket models.Basket) ([]Line, error) {
	if len(basket.Items) == 0 {
		return nil, nil
	}
	ids := make([]int, 0, len(basket.Items))
	for _, item := range basket.Items {
		ids = append(ids, item.SizeID)
	}
	sizes, err := s.sizes.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, 0, len(basket.Items))
	for _, item := range basket.Items {
		size, ok := sizes[item.SizeID]
		if !ok {
			continue
		}
		unit := size.Product.Price
		lines = append(lines, Line{
			ItemID:      item.ID,
			SizeID:      item.SizeID,
			Description: fmt.Sprintf("%s - %s", size.Product.Name, size.Name),
			Quantity:    item.Quantity,
			UnitPrice:   unit,
			Total:       unit.Mul(decimal.NewFromInt(int64(item.Quantity))),
		})
	}
	return lines, nil
}

func mailLines(lines []Line) []notification.Line {
	out := make([]notification.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, notification.Line{
			Description: l.Description,
			Quantity:    l.Quantity,
			Total:       l.Total,
		})
	}
	return out
}
