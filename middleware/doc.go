// Package middleware adapts [phonebook.Engine.Authenticate] to HTTP.
//
// [Guard] wraps a net/http handler and [GinGuard] is the same check as a gin
// handler. Both read "Authorization: Bearer <token>", reject the request on
// any authentication failure, and store the resolved principal in the
// request context for [PrincipalFromContext].
//
// Every token failure is answered with the same message. The status
// distinguishes a missing or invalid token (401) from a valid token that no
// longer matches a live session or user (403).
package middleware
