// Package mailer delivers phonebook.Message values.
//
//   - [SMTP] sends through an SMTP relay with github.com/wneessen/go-mail.
//   - [Log] writes recipient and subject to a zap logger and drops the body,
//     for local runs without a relay.
//   - [Outbox] keeps messages in memory for tests and load runs.
package mailer
