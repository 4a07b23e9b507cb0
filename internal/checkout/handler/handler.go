// Package handler exposes the shop's basket and checkout endpoints.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	basketservice "emporia/internal/basket/service"
	"emporia/internal/checkout/binder"
	checkoutservice "emporia/internal/checkout/service"
	"emporia/internal/platform/middleware"
	"emporia/internal/shop/models"
	dErrors "emporia/pkg/domain-errors"
	"emporia/pkg/requestcontext"
)

// authCookie is the signed JWT identifying a returning customer.
const authCookie = "emporia_auth"

// CheckoutService builds checkout views and places orders.
type CheckoutService interface {
	Index(ctx context.Context, ident models.Identity, basketID uuid.UUID) (checkoutservice.View, error)
	PlaceOrder(ctx context.Context, ident models.Identity, order *models.Order, errs *binder.ErrorSet) (checkoutservice.PlaceResult, error)
	OrderDetail(ctx context.Context, ident models.Identity, orderID int64) (*models.Order, []checkoutservice.Line, error)
}

// BasketService mutates the visitor's basket.
type BasketService interface {
	CurrentBasket(ctx context.Context, ident models.Identity) (models.Basket, error)
	Update(ctx context.Context, ident models.Identity, sizeID, quantity int) (basketservice.UpdateResult, error)
	Remove(ctx context.Context, ident models.Identity, itemID uuid.UUID) (models.Basket, error)
	SetCountry(ctx context.Context, ident models.Identity, countryID int) (models.Basket, error)
}

// IdentityService resolves the request's session to a user.
type IdentityService interface {
	CurrentIdentity(ctx context.Context, token string) (models.Identity, error)
}

type Handler struct {
	checkout   CheckoutService
	baskets    BasketService
	identities IdentityService
	binder     *binder.Binder
	logger     *slog.Logger
}

func New(
	checkout CheckoutService,
	baskets BasketService,
	identities IdentityService,
	formBinder *binder.Binder,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		checkout:   checkout,
		baskets:    baskets,
		identities: identities,
		binder:     formBinder,
		logger:     logger,
	}
}

// Register mounts the shop routes with the shared middleware chain.
func (h *Handler) Register(r chi.Router) {
	shop := chi.NewRouter()
	shop.Use(middleware.Recovery(h.logger))
	shop.Use(middleware.RequestID)
	shop.Use(middleware.Logger(h.logger))
	shop.Use(middleware.Timeout(30 * time.Second))
	shop.Use(middleware.Session)

	shop.Get("/basket", h.handleBasket)
	shop.Post("/basket", h.handleBasketUpdate)
	shop.Post("/basket/remove", h.handleBasketRemove)
	shop.Post("/basket/country", h.handleBasketCountry)
	shop.Get("/checkout/{basketID}", h.handleCheckoutIndex)
	shop.Post("/checkout", h.handlePlaceOrder)
	shop.Get("/orders/{orderID}", h.handleOrderDetail)

	r.Mount("/", shop)
}

// basketResponse is the JSON shape shared by the basket endpoints.
type basketResponse struct {
	Basket  models.Basket `json:"basket"`
	Message string        `json:"message,omitempty"`
}

func (h *Handler) handleBasket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}

	basket, err := h.baskets.CurrentBasket(ctx, ident)
	if err != nil {
		h.writeError(ctx, w, err, "load basket")
		return
	}
	writeJSON(w, http.StatusOK, basketResponse{Basket: basket})
}

func (h *Handler) handleBasketUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid form submission"), "parse form")
		return
	}

	sizeID, err := strconv.Atoi(r.PostForm.Get("sizeid"))
	if err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "Size is required"), "parse size")
		return
	}
	quantity := 1
	if q := r.PostForm.Get("quantity"); q != "" {
		quantity, err = strconv.Atoi(q)
		if err != nil {
			h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "Quantity must be a number"), "parse quantity")
			return
		}
	}

	result, err := h.baskets.Update(ctx, ident, sizeID, quantity)
	if err != nil {
		h.writeError(ctx, w, err, "update basket")
		return
	}
	if result.AuthCookie != "" {
		h.setAuthCookie(w, result.AuthCookie)
	}
	writeJSON(w, http.StatusOK, basketResponse{Basket: result.Basket, Message: result.Message})
}

func (h *Handler) handleBasketRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid form submission"), "parse form")
		return
	}

	itemID, err := uuid.Parse(r.PostForm.Get("basketitemid"))
	if err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "Basket item reference is invalid"), "parse item id")
		return
	}

	basket, err := h.baskets.Remove(ctx, ident, itemID)
	if err != nil {
		h.writeError(ctx, w, err, "remove basket item")
		return
	}
	writeJSON(w, http.StatusOK, basketResponse{Basket: basket})
}

func (h *Handler) handleBasketCountry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid form submission"), "parse form")
		return
	}

	countryID, err := strconv.Atoi(r.PostForm.Get("countryid"))
	if err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "Country is required"), "parse country")
		return
	}

	basket, err := h.baskets.SetCountry(ctx, ident, countryID)
	if err != nil {
		h.writeError(ctx, w, err, "set basket country")
		return
	}
	writeJSON(w, http.StatusOK, basketResponse{Basket: basket})
}

func (h *Handler) handleCheckoutIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}

	basketID, err := uuid.Parse(chi.URLParam(r, "basketID"))
	if err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "Basket reference is invalid"), "parse basket id")
		return
	}

	view, err := h.checkout.Index(ctx, ident, basketID)
	if err != nil {
		h.writeError(ctx, w, err, "build checkout")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "invalid form submission"), "parse form")
		return
	}

	order, errs := h.binder.Bind(ctx, r.PostForm)
	result, err := h.checkout.PlaceOrder(ctx, ident, order, errs)
	if err != nil {
		h.writeError(ctx, w, err, "place order")
		return
	}

	if result.View != nil {
		// Rejected submission: re-render the form with the customer's
		// input preserved.
		writeJSON(w, http.StatusUnprocessableEntity, result.View)
		return
	}

	if result.AuthCookie != "" {
		h.setAuthCookie(w, result.AuthCookie)
	}
	w.Header().Set("Location", result.RedirectURL)
	writeJSON(w, http.StatusSeeOther, map[string]any{
		"order_id": result.OrderID,
		"location": result.RedirectURL,
	})
}

// orderResponse pairs the order with its priced lines.
type orderResponse struct {
	Order *models.Order          `json:"order"`
	Lines []checkoutservice.Line `json:"lines"`
}

func (h *Handler) handleOrderDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeBadRequest, "Order reference is invalid"), "parse order id")
		return
	}

	order, lines, err := h.checkout.OrderDetail(ctx, ident, orderID)
	if err != nil {
		h.writeError(ctx, w, err, "load order")
		return
	}
	writeJSON(w, http.StatusOK, orderResponse{Order: order, Lines: lines})
}

// identity resolves the session minted by the Session middleware. A
// resolution failure is an infrastructure problem, not a client error.
func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	ctx := r.Context()
	ident, err := h.identities.CurrentIdentity(ctx, requestcontext.SessionToken(ctx))
	if err != nil {
		h.writeError(ctx, w, dErrors.Wrap(err, dErrors.CodeInternal, "could not resolve session"), "resolve identity")
		return models.Identity{}, false
	}
	return ident, true
}

func (h *Handler) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(30 * 24 * time.Hour),
	})
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error, op string) {
	status := dErrors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed",
			"op", op,
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, "request rejected",
			"op", op,
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": dErrors.MessageFor(err)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
