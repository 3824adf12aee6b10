// Package phonebook is the account and session engine of the phonebook
// service.
//
// An [Engine] built by [Builder] signs users up, verifies their email,
// logs them in with an HS256 access/refresh pair, and keeps exactly one
// server-side session per user. [Engine.Authenticate] accepts an access
// token only while it is the one bound to that session, so a second login
// or a logout revokes earlier tokens immediately.
//
// Recovery links (email verification and password reset) carry opaque
// single-use tokens; the store keeps only their keyed digests.
//
// Persistence, mail and avatars are injected through [UserStore],
// [SessionStore], [Mailer] and [AvatarService]. Engine methods are safe to
// call from multiple goroutines after Build.
//
// Errors are sentinels; [KindOf] classifies them for transports.
package phonebook
