// Package auth verifies bearer tokens and turns them into a Principal.
// Identity is issued elsewhere; this package only checks signatures and
// standard claims.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/merchantdesk/internal/common"
	"github.com/dmitrijs2005/merchantdesk/internal/logging"
	"github.com/dmitrijs2005/merchantdesk/internal/server/models"
)

// Claims carries the registered claims plus the email used for admin lookup.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Verifier authenticates a raw bearer token.
type Verifier interface {
	Verify(ctx context.Context, token string) (*models.Principal, error)
}

// JWTVerifier validates JWTs with a fixed set of accepted algorithms.
type JWTVerifier struct {
	keyfunc  func(ctx context.Context) jwt.Keyfunc
	methods  []string
	issuer   string
	audience string
}

// NewHMACVerifier accepts HS256 tokens signed with secret.
func NewHMACVerifier(secret []byte, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{
		keyfunc: func(context.Context) jwt.Keyfunc {
			return func(*jwt.Token) (any, error) { return secret, nil }
		},
		methods:  []string{jwt.SigningMethodHS256.Alg()},
		issuer:   issuer,
		audience: audience,
	}
}

// NewJWKSVerifier accepts RS256/ES256 tokens whose keys are published at
// jwksURL. The key set is refreshed in the background; a provider that is
// down at startup does not stop the server.
func NewJWKSVerifier(jwksURL, issuer, audience string, refresh time.Duration, log logging.Logger) (*JWTVerifier, error) {
	storage, err := jwkset.NewStorageFromHTTP(jwksURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: 10 * time.Second},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           refresh,
		RefreshErrorHandler: func(ctx context.Context, err error) {
			log.Error(ctx, "jwks refresh failed", "url", jwksURL, "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks storage: %w", err)
	}

	kf, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("jwks keyfunc: %w", err)
	}
	return NewKeyfuncVerifier(kf, issuer, audience), nil
}

// NewKeyfuncVerifier wraps an existing keyfunc.Keyfunc.
func NewKeyfuncVerifier(kf keyfunc.Keyfunc, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{
		keyfunc:  kf.KeyfuncCtx,
		methods:  []string{"RS256", "ES256"},
		issuer:   issuer,
		audience: audience,
	}
}

// Verify returns the principal named by the token's sub and email claims.
// Expired tokens yield common.ErrTokenExpired, anything else wrong yields
// common.ErrInvalidToken.
func (v *JWTVerifier) Verify(ctx context.Context, tokenString string) (*models.Principal, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyfunc(ctx), opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrInvalidToken
	}

	return &models.Principal{ID: claims.Subject, Email: claims.Email}, nil
}

// GenerateToken signs an HS256 token for local development and tests.
func GenerateToken(subject, email string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		Email: email,
	})

	return token.SignedString(secretKey)
}
