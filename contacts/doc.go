// Package contacts is the per-user address book.
//
// Every operation takes the id of the acting user. A contact owned by
// someone else fails with an error matching phonebook.ErrForbidden, an
// unknown id with one matching phonebook.ErrNotFound, and bad input with
// one matching phonebook.ErrValidation, so transports can map them through
// phonebook.KindOf.
package contacts
