// Package token issues and verifies short-lived bearer access tokens.
//
// Tokens are stateless: the only process-wide state is the symmetric secret and
// format chosen at startup. Verification failures all surface as ErrInvalidToken;
// the wrapped reason (ErrMalformed, ErrSignature, ErrExpired, ...) is for logs only.
package token
