// Package auth implements registration and login: credentials in, access token out.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"shelf/cmd/identity"
	"shelf/cmd/internal/apperr"
	"shelf/cmd/security/password"
	"shelf/cmd/security/token"
)

// MsgBadCredentials is the single login failure message; it never says which
// half of the credentials was wrong.
const MsgBadCredentials = "Incorrect username or password"

// Hasher hashes and checks passwords.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Matches(digest, plaintext string) bool
}

// Issuer mints access tokens.
type Issuer interface {
	Issue(subject string, now time.Time) (token.Issued, error)
}

// Service runs the register/login flows.
type Service struct {
	users  identity.Store
	hasher Hasher
	tokens Issuer
	log    *slog.Logger
	now    func() time.Time

	// dummyHash is verified when the user does not exist so unknown and
	// known usernames cost the same.
	dummyHash string
}

// NewService wires the flows and precomputes the timing-equalization digest.
func NewService(users identity.Store, hasher Hasher, tokens Issuer, log *slog.Logger) (*Service, error) {
	if users == nil || hasher == nil || tokens == nil {
		return nil, errors.New("auth: users, hasher and tokens are required")
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	dummy, err := hasher.Hash("dummy-password-for-timing-only")
	if err != nil {
		return nil, err
	}
	return &Service{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		log:       log,
		now:       time.Now,
		dummyHash: dummy,
	}, nil
}

// Register creates the user and returns a token for it.
func (s *Service) Register(ctx context.Context, username, plaintext string) (token.Issued, error) {
	name, err := identity.ValidateUsername(username)
	if err != nil {
		return token.Issued{}, err
	}

	// Fast path only; the unique constraint is authoritative.
	if _, err := s.users.UserByUsername(ctx, name); err == nil {
		s.log.InfoContext(ctx, "auth.register.conflict", "username", name, "stage", "precheck")
		return token.Issued{}, identity.ErrUsernameTaken()
	} else if !identity.IsNotFound(err) {
		return token.Issued{}, apperr.FromStore(err)
	}

	digest, err := s.hasher.Hash(plaintext)
	if err != nil {
		if password.IsPolicyViolation(err) {
			return token.Issued{}, policyError(err)
		}
		return token.Issued{}, apperr.Internal(err)
	}

	now := s.now()
	u, err := s.users.CreateUser(ctx, identity.CreateUserInput{
		Username:     name,
		PasswordHash: digest,
		Now:          now,
	})
	if err != nil {
		if identity.IsConflict(err) {
			s.log.InfoContext(ctx, "auth.register.conflict", "username", name, "stage", "constraint")
		}
		return token.Issued{}, apperr.FromStore(err)
	}

	issued, err := s.tokens.Issue(u.Username, now)
	if err != nil {
		return token.Issued{}, apperr.Internal(err)
	}
	s.log.InfoContext(ctx, "auth.register.ok", "user_id", u.ID, "username", u.Username)
	return issued, nil
}

// Login checks the credentials and returns a token. Every credential failure
// is the same AuthenticationError.
func (s *Service) Login(ctx context.Context, username, plaintext string) (token.Issued, error) {
	name := identity.NormalizeUsername(username)

	u, err := s.users.UserByUsername(ctx, name)
	if err != nil {
		if !identity.IsNotFound(err) {
			return token.Issued{}, apperr.FromStore(err)
		}
		_ = s.hasher.Matches(s.dummyHash, plaintext)
		s.log.InfoContext(ctx, "auth.login.fail", "reason", "unknown_user")
		return token.Issued{}, apperr.Authentication(MsgBadCredentials)
	}

	if !s.hasher.Matches(u.PasswordHash, plaintext) {
		s.log.InfoContext(ctx, "auth.login.fail", "reason", "bad_password", "user_id", u.ID)
		return token.Issued{}, apperr.Authentication(MsgBadCredentials)
	}

	issued, err := s.tokens.Issue(u.Username, s.now())
	if err != nil {
		return token.Issued{}, apperr.Internal(err)
	}
	s.log.InfoContext(ctx, "auth.login.ok", "user_id", u.ID)
	return issued, nil
}

func policyError(err error) error {
	switch {
	case errors.Is(err, password.ErrPasswordTooShort):
		return apperr.Validation("password is too short")
	case errors.Is(err, password.ErrPasswordTooLong):
		return apperr.Validation("password is too long")
	default:
		return apperr.Validation("password is too weak")
	}
}
