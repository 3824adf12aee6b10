// Package recovery mints the opaque single-use tokens mailed for email
// verification and password reset.
//
// Only [Codec.Digest] of a token is ever persisted. The digest is an
// HMAC-SHA256 keyed with the recovery secret over "<purpose>:<token>", so a
// verification token looked up in the reset column never matches.
package recovery
