// Package session owns the server-side session record of a login grant and its
// Redis-backed store.
//
// # Model
//
// A user has zero or one session. The record keeps SHA-256 digests of the
// current access and refresh tokens, never the tokens themselves, plus the
// absolute expiry of the grant. Expiry is checked lazily on read; Redis key
// TTLs only reclaim memory.
//
// # Binary encoding
//
// Sessions are stored as a compact versioned binary blob. The refresh digest
// sits at a fixed offset after the user id so the rotation script can compare
// and swap it without decoding the whole record.
//
// # What this package must NOT do
//
//   - Import the root phonebook package or jwt (no upward imports).
//   - Decide whether a token is authentic; callers verify signatures first.
//   - Store plaintext tokens in [Session] fields.
package session
