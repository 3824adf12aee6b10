// Package rate holds the Redis fixed-window counter and the login limiter
// built on it.
//
// # Window semantics
//
// INCR, then EXPIRE on the first hit of a window. Key prefixes:
//   - pbl:  login per email
//   - pbli: login per client IP
//
// Policies for other flows live in internal/limiters.
package rate
