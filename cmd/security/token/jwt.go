package token

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

type jwtCodec struct {
	key []byte
}

func newJWTCodec(secret []byte) *jwtCodec {
	key := make([]byte, len(secret))
	copy(key, secret)
	return &jwtCodec{key: key}
}

func (j *jwtCodec) sign(c Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   c.Subject,
		Issuer:    c.Issuer,
		IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
	})
	return t.SignedString(j.key)
}

// parse checks the signature and structure. Time claims are validated by Service
// so both formats share one clock.
func (j *jwtCodec) parse(tok string) (Claims, error) {
	var rc jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tok, &rc, func(*jwt.Token) (any, error) {
		return j.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return Claims{}, invalid(ErrSignature)
		default:
			return Claims{}, invalid(ErrMalformed)
		}
	}

	c := Claims{Subject: rc.Subject, Issuer: rc.Issuer}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c, nil
}
