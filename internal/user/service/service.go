// Package service resolves the acting identity for each request and
// promotes guest placeholders to persisted customers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"emporia/internal/shop/models"
	"emporia/internal/user/session"
	"emporia/internal/user/store"
	"emporia/pkg/email"
	"emporia/pkg/platform/sentinel"
	"emporia/pkg/requestcontext"
)

type Service struct {
	users      store.UserStore
	sessions   session.Store
	signingKey []byte
	logger     *slog.Logger
}

func New(users store.UserStore, sessions session.Store, signingKey []byte, logger *slog.Logger) *Service {
	return &Service{
		users:      users,
		sessions:   sessions,
		signingKey: signingKey,
		logger:     logger,
	}
}

// CurrentIdentity resolves the session token to an identity. An unbound
// token yields a guest placeholder; the first basket mutation persists it.
func (s *Service) CurrentIdentity(ctx context.Context, token string) (models.Identity, error) {
	ident := models.Identity{SessionToken: token, User: models.User{IsGuest: true}}

	userID, err := s.sessions.Lookup(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return ident, nil
		}
		return models.Identity{}, fmt.Errorf("resolve session: %w", err)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Stale binding; treat as guest rather than failing the request.
			s.logger.WarnContext(ctx, "session bound to missing user", "user_id", userID)
			return ident, nil
		}
		return models.Identity{}, fmt.Errorf("load user: %w", err)
	}

	ident.User = user
	return ident, nil
}

// CreateNewCustomer persists a fresh guest customer record. The signup
// device is recorded from the request's User-Agent when available.
func (s *Service) CreateNewCustomer(ctx context.Context) (models.User, error) {
	user := models.User{
		ID:           uuid.New(),
		IsGuest:      true,
		SignupDevice: deviceFrom(requestcontext.UserAgent(ctx)),
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := s.users.Save(ctx, user); err != nil {
		return models.User{}, fmt.Errorf("create customer: %w", err)
	}
	return user, nil
}

// SetAuthenticationCookie mints the signed token the transport layer sets
// as the authentication cookie for the given email.
func (s *Service) SetAuthenticationCookie(email string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(30 * 24 * time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign auth token: %w", err)
	}
	return signed, nil
}

// SetContextUserTo re-binds the session token to the given user.
func (s *Service) SetContextUserTo(ctx context.Context, token string, user models.User) error {
	if err := s.sessions.Bind(ctx, token, user.ID); err != nil {
		return fmt.Errorf("bind session to user: %w", err)
	}
	return nil
}

// Promotion carries the outcome of promoting a guest placeholder.
type Promotion struct {
	User models.User
	// AuthCookie is the signed token the handler should set as the
	// authentication cookie. Empty when the user has no email yet.
	AuthCookie string
}

// Promote persists a guest placeholder and re-binds the session to the new
// identity. Idempotent for identities that are already persisted.
func (s *Service) Promote(ctx context.Context, ident models.Identity) (Promotion, error) {
	if !ident.User.IsPlaceholder() {
		return Promotion{User: ident.User}, nil
	}

	user, err := s.CreateNewCustomer(ctx)
	if err != nil {
		return Promotion{}, err
	}

	promo := Promotion{User: user}
	if user.Email != "" {
		cookie, err := s.SetAuthenticationCookie(user.Email)
		if err != nil {
			return Promotion{}, err
		}
		promo.AuthCookie = cookie
	}

	if err := s.SetContextUserTo(ctx, ident.SessionToken, user); err != nil {
		return Promotion{}, err
	}

	s.logger.InfoContext(ctx, "guest promoted to customer",
		"user_id", user.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return promo, nil
}

// RegisterEmail records the customer's email once known (order placement)
// and derives a display name for it.
func (s *Service) RegisterEmail(ctx context.Context, user models.User, address string) (models.User, error) {
	if address == "" || user.Email == address {
		return user, nil
	}
	first, last := email.DeriveNameFromEmail(address)
	user.Email = address
	if user.FirstName == "" {
		user.FirstName = first
	}
	if user.LastName == "" {
		user.LastName = last
	}
	if err := s.users.Save(ctx, user); err != nil {
		return models.User{}, fmt.Errorf("register email: %w", err)
	}
	return user, nil
}

func deviceFrom(ua string) string {
	if ua == "" {
		return ""
	}
	parsed := useragent.New(ua)
	browser, version := parsed.Browser()
	parts := []string{}
	if browser != "" {
		parts = append(parts, browser+" "+version)
	}
	if os := parsed.OS(); os != "" {
		parts = append(parts, os)
	}
	return strings.Join(parts, " / ")
}
