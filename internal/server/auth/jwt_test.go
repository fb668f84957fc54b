package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/json"
	"testing"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/merchantdesk/internal/common"
)

func TestGenerateAndVerify_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	tok, err := GenerateToken("user-123", "a@b.com", secret, time.Hour)
	require.NoError(t, err)

	p, err := NewHMACVerifier(secret, "", "").Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", p.ID)
	assert.Equal(t, "a@b.com", p.Email)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := GenerateToken("u1", "", secret, -time.Hour)
	require.NoError(t, err)

	_, err = NewHMACVerifier(secret, "", "").Verify(context.Background(), tok)
	require.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestVerify_Invalid(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	good, err := GenerateToken("u1", "", secret, time.Hour)
	require.NoError(t, err)

	noSub, err := GenerateToken("", "x@y.z", secret, time.Hour)
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"},
	}).SignedString(secret)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]struct {
		token  string
		secret []byte
	}{
		"garbage":      {token: "not-a-jwt", secret: secret},
		"wrong secret": {token: good, secret: []byte("other")},
		"missing sub":  {token: noSub, secret: secret},
		"missing exp":  {token: noExp, secret: secret},
		"alg none":     {token: none, secret: secret},
		"empty token":  {token: "", secret: secret},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewHMACVerifier(tc.secret, "", "").Verify(context.Background(), tc.token)
			require.ErrorIs(t, err, common.ErrInvalidToken)
		})
	}
}

func TestVerify_IssuerAndAudience(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			Issuer:    "https://id.example.com",
			Audience:  jwt.ClaimStrings{"merchantdesk"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(secret)
	require.NoError(t, err)

	_, err = NewHMACVerifier(secret, "https://id.example.com", "merchantdesk").Verify(context.Background(), tok)
	require.NoError(t, err)

	_, err = NewHMACVerifier(secret, "https://other.example.com", "").Verify(context.Background(), tok)
	require.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = NewHMACVerifier(secret, "", "billing").Verify(context.Background(), tok)
	require.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestKeyfuncVerifier_ES256(t *testing.T) {
	t.Parallel()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	jwk, err := jwkset.NewJWKFromKey(priv.Public(), jwkset.JWKOptions{
		Metadata: jwkset.JWKMetadataOptions{KID: "k1", ALG: jwkset.AlgES256, USE: jwkset.UseSig},
	})
	require.NoError(t, err)
	raw, err := json.Marshal(map[string]any{"keys": []jwkset.JWKMarshal{jwk.Marshal()}})
	require.NoError(t, err)

	kf, err := keyfunc.NewJWKSetJSON(raw)
	require.NoError(t, err)
	v := NewKeyfuncVerifier(kf, "", "")

	tok := jwt.NewWithClaims(jwt.SigningMethodES256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u9", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
		Email:            "u9@example.com",
	})
	tok.Header["kid"] = "k1"
	signed, err := tok.SignedString(priv)
	require.NoError(t, err)

	p, err := v.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "u9", p.ID)
	assert.Equal(t, "u9@example.com", p.Email)

	hmacTok, err := GenerateToken("u9", "", []byte("secret"), time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(context.Background(), hmacTok)
	require.ErrorIs(t, err, common.ErrInvalidToken)
}
