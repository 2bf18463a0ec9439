// Package password hashes and verifies user passwords.
//
// New digests use Argon2id (PHC string) by default, or bcrypt when configured.
// Verification accepts both formats, treats the stored digest as untrusted input
// and refuses parameters far above the configured cost.
package password
