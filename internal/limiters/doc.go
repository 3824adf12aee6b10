// Package limiters holds flow-specific rate limits built on internal/rate.
//
//   - [RecoveryLimiter]: per-email and per-IP budget for resend-verification
//     and forgot-password requests.
//
// A nil limiter allows everything.
package limiters
