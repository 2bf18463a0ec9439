package token

import (
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	paseto "aidanwoods.dev/go-paseto"
	"golang.org/x/crypto/hkdf"
)

const (
	pasetoLocalPrefix = "v4.local."
	pasetoKeyInfo     = "shelf/token/v4.local"
)

type pasetoCodec struct {
	key paseto.V4SymmetricKey
}

// newPasetoCodec derives the 32-byte v4.local key from the configured secret with HKDF-SHA256.
func newPasetoCodec(secret []byte) (*pasetoCodec, error) {
	raw := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(pasetoKeyInfo)), raw); err != nil {
		return nil, fmt.Errorf("derive paseto key: %w", err)
	}
	key, err := paseto.V4SymmetricKeyFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("paseto key: %w", err)
	}
	return &pasetoCodec{key: key}, nil
}

func (p *pasetoCodec) sign(c Claims) (string, error) {
	tok := paseto.NewToken()
	tok.SetSubject(c.Subject)
	tok.SetIssuer(c.Issuer)
	tok.SetIssuedAt(c.IssuedAt)
	tok.SetNotBefore(c.IssuedAt)
	tok.SetExpiration(c.ExpiresAt)
	return tok.V4Encrypt(p.key, nil), nil
}

func (p *pasetoCodec) parse(tok string) (Claims, error) {
	if !strings.HasPrefix(tok, pasetoLocalPrefix) {
		return Claims{}, invalid(ErrMalformed)
	}

	// Expiry is checked by Service against the caller's clock.
	parser := paseto.NewParserWithoutExpiryCheck()
	parsed, err := parser.ParseV4Local(p.key, tok, nil)
	if err != nil {
		// v4.local authenticates the whole payload; a failure here is tampering or a foreign key.
		return Claims{}, invalid(ErrSignature)
	}

	sub, err := parsed.GetSubject()
	if err != nil {
		return Claims{}, invalid(ErrSubject)
	}
	iss, _ := parsed.GetIssuer()
	iat, _ := parsed.GetIssuedAt()
	exp, err := parsed.GetExpiration()
	if err != nil {
		return Claims{}, invalid(ErrMalformed)
	}

	return Claims{Subject: sub, Issuer: iss, IssuedAt: iat, ExpiresAt: exp}, nil
}
