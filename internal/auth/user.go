package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/weblate/abrechnung/internal/pgerr"
)

// User represents a persisted user record.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Store keeps users in Postgres. Hashing happens in the database
// (pgcrypto bcrypt), so stored hashes verify with x/crypto/bcrypt.
type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) Register(ctx context.Context, email, username, password string) (int64, error) {
	var id int64
	err := s.Pool.QueryRow(ctx, `select user_register($1, $2, $3)`, email, username, password).Scan(&id)
	if err != nil {
		return 0, pgerr.Translate(err)
	}
	return id, nil
}

func (s *Store) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.scanUser(s.Pool.QueryRow(ctx, `
SELECT id, email, username, password, registered_at
FROM usr
WHERE email = $1
`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("%w: invalid email or password", pgerr.ErrUnauthenticated)
	}
	if err != nil {
		return User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, fmt.Errorf("%w: invalid email or password", pgerr.ErrUnauthenticated)
	}
	return u, nil
}

func (s *Store) Get(ctx context.Context, id int64) (User, error) {
	u, err := s.scanUser(s.Pool.QueryRow(ctx, `
SELECT id, email, username, password, registered_at
FROM usr
WHERE id = $1
`, id))
	if err != nil {
		return User{}, pgerr.Translate(err)
	}
	return u, nil
}

func (s *Store) scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.RegisteredAt)
	return u, err
}
