package contacts

import (
	"context"
	"time"

	"github.com/MrEthical07/phonebook"
)

// Contact is one address book entry.
type Contact struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Favorite  bool      `json:"favorite"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewContact is the input of Service.Add.
type NewContact struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required"`
	Favorite bool   `json:"favorite"`
}

// Patch lists the fields to change; nil fields are left alone.
type Patch struct {
	Name     *string `json:"name,omitempty" validate:"omitnil,min=1"`
	Email    *string `json:"email,omitempty" validate:"omitnil,email"`
	Phone    *string `json:"phone,omitempty" validate:"omitnil,min=1"`
	Favorite *bool   `json:"favorite,omitempty"`
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Favorite == nil
}

// Apply writes the set fields of p onto c.
func (p Patch) Apply(c *Contact) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Favorite != nil {
		c.Favorite = *p.Favorite
	}
}

// Filter selects one page of an owner's contacts, oldest first.
type Filter struct {
	Favorite *bool
	Limit    int
	Offset   int
}

// Store persists contacts. Get, Update and Delete return an error matching
// ErrContactNotFound for unknown ids. Update and Delete only touch rows of
// ownerID.
type Store interface {
	List(ctx context.Context, ownerID string, f Filter) ([]Contact, error)
	Get(ctx context.Context, id string) (*Contact, error)
	Insert(ctx context.Context, c *Contact) error
	Update(ctx context.Context, ownerID, id string, p Patch, now time.Time) (*Contact, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// inputError carries a client-facing message and matches
// phonebook.ErrValidation.
type inputError struct{ msg string }

func (e inputError) Error() string { return e.msg }
func (e inputError) Unwrap() error { return phonebook.ErrValidation }

type lookupError struct {
	msg  string
	kind error
}

func (e lookupError) Error() string { return e.msg }
func (e lookupError) Unwrap() error { return e.kind }

var (
	ErrContactNotFound error = lookupError{"contact not found", phonebook.ErrNotFound}
	ErrAccessDenied    error = lookupError{"access denied", phonebook.ErrForbidden}
	ErrMissingFields   error = inputError{"missing fields"}
	ErrMissingFavorite error = inputError{"missing field favorite"}
)
