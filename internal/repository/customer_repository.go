package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bankcore/banking-api/internal/domain"
)

// CustomerRepository defines the customer lookups the auth flows need.
// Unknown customers yield domain.ErrIdentityNotFound.
type CustomerRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Customer, error)
	FindBySubject(ctx context.Context, subject string) (*domain.Identity, error)
	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

type customerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a Postgres-backed implementation.
func NewCustomerRepository(pool *pgxpool.Pool) CustomerRepository {
	return &customerRepository{pool: pool}
}

func (r *customerRepository) GetByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	if r.pool == nil {
		return nil, errNoDatabase
	}
	const query = `
        SELECT id, first_name, last_name, email, national_id, phone_number,
               password_hash, is_active, created_at, updated_at
        FROM customers WHERE email=$1`

	var c domain.Customer
	if err := r.pool.QueryRow(ctx, query, normalizeEmail(email)).Scan(
		&c.ID,
		&c.FirstName,
		&c.LastName,
		&c.Email,
		&c.NationalID,
		&c.PhoneNumber,
		&c.PasswordHash,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &c, nil
}

func (r *customerRepository) FindBySubject(ctx context.Context, subject string) (*domain.Identity, error) {
	if r.pool == nil {
		return nil, errNoDatabase
	}
	const query = `
        SELECT email, is_active, national_id
        FROM customers WHERE email=$1`

	var identity domain.Identity
	if err := r.pool.QueryRow(ctx, query, normalizeEmail(subject)).Scan(
		&identity.Subject,
		&identity.Active,
		&identity.AdminIdentifier,
	); err != nil {
		return nil, mapNotFound(err)
	}
	return &identity, nil
}

func (r *customerRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if r.pool == nil {
		return errNoDatabase
	}
	const query = `
        UPDATE customers SET password_hash=$1, updated_at=NOW()
        WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, hash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

var errNoDatabase = errors.New("postgres is not configured")

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrIdentityNotFound
	}
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
