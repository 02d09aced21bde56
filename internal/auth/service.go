package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotConfigured is returned when the OAuth2 login flow is used while no
// provider is configured.
var ErrNotConfigured = errors.New("auth: oauth2 not configured") //nolint:gochecknoglobals // sentinel error

// Identity is an authenticated caller. Email doubles as the actor id used to
// key the memory store.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// ActorID returns the memory-store actor key for this identity.
func (i Identity) ActorID() string { return i.Email }

// Service combines the OAuth2 login flow with gateway-issued JWTs.
type Service struct {
	provider *OAuthProvider // nil when OAuth is not configured
	secret   string
	tokenTTL time.Duration
}

// NewService creates an auth service. provider may be nil, which disables the
// login flow; VerifyToken keeps working as long as secret is set.
func NewService(provider *OAuthProvider, secret string, tokenTTL time.Duration) *Service {
	return &Service{provider: provider, secret: secret, tokenTTL: tokenTTL}
}

// LoginConfigured reports whether the OAuth2 flow is available.
func (s *Service) LoginConfigured() bool {
	return s != nil && s.provider != nil
}

// AuthorizationURL starts the login flow.
func (s *Service) AuthorizationURL(state string) (string, error) {
	if !s.LoginConfigured() {
		return "", ErrNotConfigured
	}
	return s.provider.AuthorizationURL(state), nil
}

// HandleCallback exchanges the provider code and issues a gateway token.
func (s *Service) HandleCallback(ctx context.Context, code string) (token string, identity *Identity, err error) {
	if !s.LoginConfigured() {
		return "", nil, ErrNotConfigured
	}

	email, name, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		return "", nil, fmt.Errorf("auth.Service.HandleCallback: %w", err)
	}

	token, err = IssueToken(s.secret, email, name, s.tokenTTL)
	if err != nil {
		return "", nil, fmt.Errorf("auth.Service.HandleCallback: %w", err)
	}

	return token, &Identity{Email: email, Name: name}, nil
}

// VerifyToken validates a gateway token and returns the caller's identity.
func (s *Service) VerifyToken(tokenString string) (*Identity, error) {
	claims, err := ValidateToken(s.secret, tokenString)
	if err != nil {
		return nil, err
	}
	return &Identity{Email: claims.Email, Name: claims.Name}, nil
}
