package utils // package utils provides helpers for token signing and password hashing

import (
	"errors"  // errors for token validation failures
	"strconv" // strconv renders the numeric subject
	"time"    // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens

	"github.com/iliyamo/gamezone-reservation/internal/model"
)

// ErrInvalidToken is returned for any token that fails parsing or validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of an access token.  Subject carries the account id
// as a decimal string; Kind says which table that id belongs to.
type Claims struct {
	Kind  model.AccountKind `json:"kind"`
	Email string            `json:"email"`
	jwt.RegisteredClaims
}

// AccessToken is a signed JWT together with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for an account.  The token
// holds sub, kind, email, exp and iat.
func NewAccessToken(secret string, kind model.AccountKind, id uint64, email string, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		Kind:  kind,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(id, 10),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// ParseAccessToken verifies signature, algorithm and expiry, and returns the
// account kind and id the token was issued for.
func ParseAccessToken(secret, raw string) (model.AccountKind, uint64, *Claims, error) {
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return "", 0, nil, ErrInvalidToken
	}
	kind, err := model.ParseAccountKind(string(claims.Kind))
	if err != nil {
		return "", 0, nil, ErrInvalidToken
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 {
		return "", 0, nil, ErrInvalidToken
	}
	return kind, id, &claims, nil
}
