package contacts

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Service applies ownership and input rules on top of a Store.
type Service struct {
	store    Store
	validate *validator.Validate
	now      func() time.Time
}

func NewService(store Store) *Service {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Service{store: store, validate: v, now: time.Now}
}

// WithClock replaces time.Now for created and updated stamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// List returns page of ownerID's contacts. Page and limit below one fall
// back to the defaults and limit is capped at MaxLimit.
func (s *Service) List(ctx context.Context, ownerID string, page, limit int, favorite *bool) ([]Contact, error) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	out, err := s.store.List(ctx, ownerID, Filter{
		Favorite: favorite,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Contact{}
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (*Contact, error) {
	c, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, ErrAccessDenied
	}
	return c, nil
}

// Add stores a new contact for ownerID.
func (s *Service) Add(ctx context.Context, ownerID string, in NewContact) (*Contact, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := s.check(in); err != nil {
		return nil, err
	}

	now := s.now()
	c := &Contact{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Favorite:  in.Favorite,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Insert(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Update applies p to a contact of ownerID. An empty patch fails with
// ErrMissingFields before the store is read.
func (s *Service) Update(ctx context.Context, ownerID, id string, p Patch) (*Contact, error) {
	if p.Empty() {
		return nil, ErrMissingFields
	}
	if err := s.check(p); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, ownerID, id, p, s.now())
}

// SetFavorite flips the favorite flag. A nil flag fails with
// ErrMissingFavorite.
func (s *Service) SetFavorite(ctx context.Context, ownerID, id string, favorite *bool) (*Contact, error) {
	if favorite == nil {
		return nil, ErrMissingFavorite
	}
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, ownerID, id, Patch{Favorite: favorite}, s.now())
}

func (s *Service) Remove(ctx context.Context, ownerID, id string) error {
	if _, err := s.Get(ctx, ownerID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, ownerID, id)
}

// check runs the struct tags of v and reports the first failing field the
// way clients expect it.
func (s *Service) check(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return fmt.Errorf("%w: %v", ErrMissingFields, err)
	}
	f := fields[0]
	if f.Tag() == "required" {
		return inputError{fmt.Sprintf("missing required %s field", f.Field())}
	}
	return inputError{fmt.Sprintf("invalid %s field", f.Field())}
}
