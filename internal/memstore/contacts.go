package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/MrEthical07/phonebook/contacts"
)

// Contacts is an in-memory contacts.Store.
type Contacts struct {
	mu   sync.Mutex
	byID map[string]contacts.Contact
}

var _ contacts.Store = (*Contacts)(nil)

func NewContacts() *Contacts {
	return &Contacts{byID: make(map[string]contacts.Contact)}
}

func (s *Contacts) List(_ context.Context, ownerID string, f contacts.Filter) ([]contacts.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []contacts.Contact
	for _, c := range s.byID {
		if c.OwnerID != ownerID {
			continue
		}
		if f.Favorite != nil && c.Favorite != *f.Favorite {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if f.Offset >= len(out) {
		return []contacts.Contact{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Contacts) Get(_ context.Context, id string) (*contacts.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok {
		return nil, contacts.ErrContactNotFound
	}
	return &c, nil
}

func (s *Contacts) Insert(_ context.Context, c *contacts.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[c.ID] = *c
	return nil
}

func (s *Contacts) Update(_ context.Context, ownerID, id string, p contacts.Patch, now time.Time) (*contacts.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok || c.OwnerID != ownerID {
		return nil, contacts.ErrContactNotFound
	}
	p.Apply(&c)
	c.UpdatedAt = now
	s.byID[id] = c
	return &c, nil
}

func (s *Contacts) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[id]
	if !ok || c.OwnerID != ownerID {
		return contacts.ErrContactNotFound
	}
	delete(s.byID, id)
	return nil
}
