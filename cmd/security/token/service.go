package token

import (
	"strings"
	"time"
)

// TokenType is the OAuth2 token_type returned with every access token.
const TokenType = "bearer"

// Issued is the result of Issue.
type Issued struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	Issuer    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// codec signs and parses one wire format. parse checks integrity and structure
// only; Service applies the time and issuer rules.
type codec interface {
	sign(c Claims) (string, error)
	parse(tok string) (Claims, error)
}

// Service issues and verifies access tokens. It is immutable after NewService
// and safe for concurrent use.
type Service struct {
	ttl    time.Duration
	issuer string
	skew   time.Duration
	format Format
	codec  codec
}

// NewService validates cfg and builds the codec for its format.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		c   codec
		err error
	)
	switch cfg.Format {
	case FormatPaseto:
		c, err = newPasetoCodec([]byte(cfg.Secret))
	default:
		c = newJWTCodec([]byte(cfg.Secret))
	}
	if err != nil {
		return nil, err
	}

	return &Service{
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		skew:   cfg.ClockSkew,
		format: cfg.Format,
		codec:  c,
	}, nil
}

// TTL returns the configured token lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// Format returns the configured wire format.
func (s *Service) Format() Format { return s.format }

// Issue binds subject to an absolute expiry now+TTL.
func (s *Service) Issue(subject string, now time.Time) (Issued, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return Issued{}, ErrSubject
	}
	now = now.UTC()
	exp := now.Add(s.ttl)

	tok, err := s.codec.sign(Claims{
		Subject:   subject,
		Issuer:    s.issuer,
		IssuedAt:  now,
		ExpiresAt: exp,
	})
	if err != nil {
		return Issued{}, err
	}
	return Issued{AccessToken: tok, TokenType: TokenType, ExpiresAt: exp}, nil
}

// Verify returns the subject of a valid token. Every failure wraps ErrInvalidToken.
func (s *Service) Verify(tok string, now time.Time) (string, error) {
	c, err := s.Parse(tok, now)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

// Parse is Verify returning all claims.
func (s *Service) Parse(tok string, now time.Time) (Claims, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return Claims{}, invalid(ErrMalformed)
	}

	c, err := s.codec.parse(tok)
	if err != nil {
		return Claims{}, err
	}

	if c.Issuer != s.issuer {
		return Claims{}, invalid(ErrIssuer)
	}
	if strings.TrimSpace(c.Subject) == "" {
		return Claims{}, invalid(ErrSubject)
	}
	// Valid while now < exp (+ skew).
	if c.ExpiresAt.IsZero() || !now.Before(c.ExpiresAt.Add(s.skew)) {
		return Claims{}, invalid(ErrExpired)
	}
	return c, nil
}
