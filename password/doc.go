// Package password hashes and verifies account passwords with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.NeedsUpgrade] reports hashes produced with weaker parameters so the
// caller can re-hash on the next successful login.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords: callers supply plaintext and receive hashes.
//   - Import any other phonebook package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
