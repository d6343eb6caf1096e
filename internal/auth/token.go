package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"spendwise/internal/cache"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrRevokedToken       = errors.New("token revoked")
)

// Claims carried by every issued token. Subject is the user ID.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Token is returned to the client after a successful login.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service verifies credentials and manages HS256 tokens. Logged out tokens
// are kept in a denylist until they would have expired anyway.
type Service struct {
	users    store.UserStore
	secret   []byte
	ttl      time.Duration
	denylist cache.Cache[struct{}]
	now      func() time.Time
	logger   *log.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Service) { s.logger = l.WithComponent(log.ComponentAuth) }
}

func NewService(users store.UserStore, secret string, ttl time.Duration, denylist cache.Cache[struct{}], opts ...Option) *Service {
	s := &Service{
		users:    users,
		secret:   []byte(secret),
		ttl:      ttl,
		denylist: denylist,
		now:      time.Now,
		logger:   log.New(log.DefaultConfig()).WithComponent(log.ComponentAuth),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login checks the password and issues a token. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (Token, core.User, error) {
	user, err := s.users.GetUserByUsername(ctx, core.NormalizeUsername(username))
	if errors.Is(err, core.ErrNotFound) {
		s.logger.WarnContext(ctx, "Login failed", log.FieldUsername, username, "reason", "unknown user")
		return Token{}, core.User{}, fmt.Errorf("login: %w: %w", core.ErrAccess, ErrInvalidCredentials)
	}
	if err != nil {
		return Token{}, core.User{}, fmt.Errorf("login: %w", err)
	}
	if !CheckPassword(password, user.PasswordHash) {
		s.logger.WarnContext(ctx, "Login failed", log.FieldUsername, username, "reason", "bad password")
		return Token{}, core.User{}, fmt.Errorf("login: %w: %w", core.ErrAccess, ErrInvalidCredentials)
	}

	tok, err := s.Issue(user)
	if err != nil {
		return Token{}, core.User{}, err
	}
	s.logger.InfoContext(ctx, "User logged in", log.FieldUserID, user.ID, log.FieldUsername, user.Username)
	return tok, user, nil
}

// Issue signs a token for user valid for the configured TTL.
func (s *Service) Issue(user core.User) (Token, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Token: signed, ExpiresAt: expiresAt.UTC().Truncate(time.Second)}, nil
}

// Parse validates the signature, expiry and denylist. Every failure wraps core.ErrAccess.
func (s *Service) Parse(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrAccess, ErrInvalidToken)
	}

	claims := &Claims{}
	parser := jwt.Parser{SkipClaimsValidation: true}
	_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %v", core.ErrAccess, ErrInvalidToken, err)
	}

	// Expiry is checked against the service clock rather than the jwt package's.
	if claims.ExpiresAt == nil || !s.now().Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%w: %w: token expired", core.ErrAccess, ErrInvalidToken)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: %w: missing subject or id", core.ErrAccess, ErrInvalidToken)
	}
	if _, revoked := s.denylist.Get(claims.ID); revoked {
		return nil, fmt.Errorf("%w: %w", core.ErrAccess, ErrRevokedToken)
	}
	return claims, nil
}

// Revoke denylists the token until its natural expiry.
func (s *Service) Revoke(ctx context.Context, claims *Claims) {
	if claims == nil || claims.ExpiresAt == nil {
		return
	}
	s.denylist.SetUntil(claims.ID, struct{}{}, claims.ExpiresAt.Time)
	s.logger.InfoContext(ctx, "Token revoked", log.FieldUserID, claims.Subject)
}

type claimsKey struct{}

// NewContext returns ctx carrying the authenticated claims.
func NewContext(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}

// UserID returns the authenticated user's ID, or "" when unauthenticated.
func UserID(ctx context.Context) string {
	if c, ok := FromContext(ctx); ok {
		return c.Subject
	}
	return ""
}
