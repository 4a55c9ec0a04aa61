package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Principal is the already-verified caller identity handed to the core.
type Principal struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Verifier resolves the caller of a request to a Principal.
type Verifier interface {
	Verify(r *http.Request) (Principal, error)
}

// NewVerifier returns an HMAC JWT verifier, or the debug-header verifier when
// no secret is configured.
func NewVerifier(secret string) Verifier {
	if strings.TrimSpace(secret) == "" {
		return DebugVerifier{}
	}
	return &HMACVerifier{secret: []byte(secret)}
}

// HMACVerifier validates HS256 bearer tokens and maps their claims onto a
// Principal.
type HMACVerifier struct {
	secret []byte
}

func (v *HMACVerifier) Verify(r *http.Request) (Principal, error) {
	raw, err := bearerToken(r)
	if err != nil {
		return Principal{}, err
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	p := Principal{
		UID:         stringClaim(claims, "uid"),
		Email:       stringClaim(claims, "email"),
		DisplayName: stringClaim(claims, "name"),
	}
	if p.UID == "" {
		if sub, err := claims.GetSubject(); err == nil {
			p.UID = sub
		}
	}
	if p.UID == "" {
		return Principal{}, ErrInvalidToken
	}
	return p, nil
}

// DebugVerifier accepts an X-Debug-UID header instead of a signed token.
// Local development only; never configure a production deployment without a
// secret.
type DebugVerifier struct{}

func (DebugVerifier) Verify(r *http.Request) (Principal, error) {
	uid := strings.TrimSpace(r.Header.Get("X-Debug-UID"))
	if uid == "" {
		return Principal{}, ErrMissingToken
	}
	return Principal{
		UID:         uid,
		Email:       strings.TrimSpace(r.Header.Get("X-Debug-Email")),
		DisplayName: strings.TrimSpace(r.Header.Get("X-Debug-Name")),
	}, nil
}

func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(parts[1]), nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
