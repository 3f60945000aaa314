package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/gophersession/internal/apperrors"
	"github.com/nkiryanov/gophersession/internal/models"
)

const (
	defaultAccessTokenTTL  = 30 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultSigningMethod   = "HS256"
)

// Claims as they are encoded into JWT
type tokenClaims struct {
	jwt.RegisteredClaims
	Kind models.TokenKind `json:"knd"`
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm: HS256, HS384 or HS512
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type TokenManager struct {
	// Secret key to sign tokens
	key []byte

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	// Only symmetric algorithms: the same key signs and verifies
	alg, ok := jwt.GetSigningMethod(cfg.Alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing method %q", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field <= 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, defaultAccessTokenTTL)
	setDefaultDuration(&cfg.RefreshTTL, defaultRefreshTokenTTL)

	return &TokenManager{
		key:        []byte(cfg.SecretKey),
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}, nil
}

func (m *TokenManager) RefreshTTL() time.Duration {
	return m.refreshTTL
}

// Issue access and refresh tokens for the subject
// Both tokens carry the subject; kind is encoded explicitly so one can't be used as another
func (m *TokenManager) Issue(subject string, now time.Time) (models.TokenPair, error) {
	var pair models.TokenPair
	now = now.Truncate(time.Second)

	access, err := m.sign(subject, models.TokenKindAccess, now, now.Add(m.accessTTL))
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	refresh, err := m.sign(subject, models.TokenKindRefresh, now, now.Add(m.refreshTTL))
	if err != nil {
		return pair, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

func (m *TokenManager) sign(subject string, kind models.TokenKind, now time.Time, expiresAt time.Time) (models.IssuedToken, error) {
	token := jwt.NewWithClaims(
		m.alg,
		tokenClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   subject,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
			Kind: kind,
		},
	)

	value, err := token.SignedString(m.key)
	if err != nil {
		return models.IssuedToken{}, err
	}

	return models.IssuedToken{Value: value, ExpiresAt: expiresAt}, nil
}

type decodeOptions struct {
	now        func() time.Time
	skipExpiry bool
}

type DecodeOption func(*decodeOptions)

// Check expiry against the given time instead of wall clock
func WithTime(now time.Time) DecodeOption {
	return func(o *decodeOptions) {
		o.now = func() time.Time { return now }
	}
}

// Accept expired tokens. Signature is still verified
func SkipExpiry() DecodeOption {
	return func(o *decodeOptions) {
		o.skipExpiry = true
	}
}

// Decode verifies token signature, expiry and kind
// Returns apperrors.ErrTokenExpired if token expired and apperrors.ErrTokenMalformed on any other failure
func (m *TokenManager) Decode(token string, kind models.TokenKind, opts ...DecodeOption) (models.Claims, error) {
	o := decodeOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	// Token is still valid at the moment of its exp; parser treats exp itself as expired
	timeFunc := func() time.Time { return o.now().Add(-time.Nanosecond) }

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithTimeFunc(timeFunc),
		jwt.WithExpirationRequired(),
	}
	if o.skipExpiry {
		parserOpts = append(parserOpts, jwt.WithoutClaimsValidation())
	}

	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) {
			return m.key, nil
		},
		parserOpts...,
	)

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return models.Claims{}, fmt.Errorf("error while validating token. Err: %w", apperrors.ErrTokenExpired)
	default:
		return models.Claims{}, fmt.Errorf("error while parsing or validating token. Err: %w: %w", apperrors.ErrTokenMalformed, err)
	}

	if claims.Kind != kind {
		return models.Claims{}, fmt.Errorf("expected %s token, got %q: %w", kind, claims.Kind, apperrors.ErrTokenMalformed)
	}

	return toClaims(claims), nil
}

// Peek reads claims WITHOUT verifying the signature
// Result must be used only as a lookup key, never trusted
func (m *TokenManager) Peek(token string) (models.Claims, error) {
	claims := &tokenClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return models.Claims{}, fmt.Errorf("error while parsing token. Err: %w: %w", apperrors.ErrTokenMalformed, err)
	}

	return toClaims(claims), nil
}

func toClaims(c *tokenClaims) models.Claims {
	claims := models.Claims{Subject: c.Subject, Kind: c.Kind}
	if c.ExpiresAt != nil {
		claims.ExpiresAt = c.ExpiresAt.Time
	}
	return claims
}
