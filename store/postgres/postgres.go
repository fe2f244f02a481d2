package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	stepAuth "github.com/MrEthical07/stepAuth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// DBTX is the subset of *pgxpool.Pool, *pgx.Conn and pgx.Tx the repository uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Open connects a pool and pings it.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// IdentityRepository implements stepAuth.IdentityRepository.
type IdentityRepository struct {
	db DBTX
}

func NewIdentityRepository(db DBTX) *IdentityRepository {
	return &IdentityRepository{db: db}
}

const insertIdentitySQL = `INSERT INTO identities (email, password_digest, requires_two_factor)
VALUES ($1, $2, $3)`

func (r *IdentityRepository) Insert(ctx context.Context, identity stepAuth.Identity) error {
	_, err := r.db.Exec(ctx, insertIdentitySQL,
		identity.Email,
		identity.PasswordDigest,
		identity.RequiresTwoFactor,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return stepAuth.ErrAlreadyExists
		}
		return fmt.Errorf("%w: insert identity: %v", stepAuth.ErrUnexpected, err)
	}
	return nil
}

const selectIdentitySQL = `SELECT email, password_digest, requires_two_factor
FROM identities WHERE email = $1`

func (r *IdentityRepository) SelectByEmail(ctx context.Context, email string) (stepAuth.Identity, error) {
	var identity stepAuth.Identity
	err := r.db.QueryRow(ctx, selectIdentitySQL, email).Scan(
		&identity.Email,
		&identity.PasswordDigest,
		&identity.RequiresTwoFactor,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return stepAuth.Identity{}, stepAuth.ErrNotFound
		}
		return stepAuth.Identity{}, fmt.Errorf("%w: select identity: %v", stepAuth.ErrUnexpected, err)
	}
	return identity, nil
}

const deleteIdentitySQL = `DELETE FROM identities WHERE email = $1`

func (r *IdentityRepository) DeleteByEmail(ctx context.Context, email string) error {
	tag, err := r.db.Exec(ctx, deleteIdentitySQL, email)
	if err != nil {
		return fmt.Errorf("%w: delete identity: %v", stepAuth.ErrUnexpected, err)
	}
	if tag.RowsAffected() == 0 {
		return stepAuth.ErrNotFound
	}
	return nil
}
