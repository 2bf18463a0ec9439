// Package identity persists user principals: a unique username and the
// password digest produced by security/password.
//
// Stores never hash or compare passwords themselves. Duplicate usernames are
// reported as apperr Conflict errors whether the pre-check or the database
// constraint catches them.
package identity
