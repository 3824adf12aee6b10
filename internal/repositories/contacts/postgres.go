// Package contacts stores address book entries in Postgres.
package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/phonebook/contacts"
	"github.com/MrEthical07/phonebook/internal/dbx"
)

// PostgresRepository implements contacts.Store over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

var _ contacts.Store = (*PostgresRepository)(nil)

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const contactColumns = `id, owner_id, name, email, phone, favorite, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanContact(row scanner) (*contacts.Contact, error) {
	var c contacts.Contact
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Email, &c.Phone, &c.Favorite, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func notFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || dbx.IsCode(err, dbx.CodeInvalidTextFormat)
}

func (r *PostgresRepository) List(ctx context.Context, ownerID string, f contacts.Filter) ([]contacts.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE owner_id = $1 AND ($2::boolean IS NULL OR favorite = $2)
		ORDER BY created_at, id
		LIMIT $3 OFFSET $4
	`
	var favorite any
	if f.Favorite != nil {
		favorite = *f.Favorite
	}

	rows, err := r.db.QueryContext(ctx, query, ownerID, favorite, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]contacts.Contact, 0, f.Limit)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*contacts.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	c, err := scanContact(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if notFound(err) {
			return nil, contacts.ErrContactNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, c *contacts.Contact) error {
	query := `
		INSERT INTO contacts (id, owner_id, name, email, phone, favorite, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.OwnerID, c.Name, c.Email, c.Phone, c.Favorite, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

// Update changes only the fields set in p. NULL parameters keep the stored
// value.
func (r *PostgresRepository) Update(ctx context.Context, ownerID, id string, p contacts.Patch, now time.Time) (*contacts.Contact, error) {
	query := `
		UPDATE contacts
		SET name = COALESCE($3, name),
		    email = COALESCE($4, email),
		    phone = COALESCE($5, phone),
		    favorite = COALESCE($6, favorite),
		    updated_at = $7
		WHERE id = $1 AND owner_id = $2
		RETURNING ` + contactColumns

	c, err := scanContact(r.db.QueryRowContext(ctx, query,
		id, ownerID, nullable(p.Name), nullable(p.Email), nullable(p.Phone), nullable(p.Favorite), now,
	))
	if err != nil {
		if notFound(err) {
			return nil, contacts.ErrContactNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		if dbx.IsCode(err, dbx.CodeInvalidTextFormat) {
			return contacts.ErrContactNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return contacts.ErrContactNotFound
	}
	return nil
}

// nullable turns a nil pointer into SQL NULL and anything else into its
// value.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
