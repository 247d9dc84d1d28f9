package auth

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/lib/pq" // Used for handling specific PostgreSQL errors
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("username already exists")
)

// User is a domain model representing a player account.
type User struct {
	Username     string
	PasswordHash string
}

// Repository defines the contract for database operations for the auth service.
type Repository interface {
	CreateUser(ctx context.Context, username, hashedPassword string) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

type postgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

// CreateUser inserts a new user record together with a default-rated profile.
func (r *postgresRepository) CreateUser(ctx context.Context, username, hashedPassword string) error {
	query := `
		WITH new_user AS (
			INSERT INTO users (username, password_hash)
			VALUES ($1, $2)
			RETURNING username
		)
		INSERT INTO profiles (username)
		SELECT username FROM new_user;`

	_, err := r.db.ExecContext(ctx, query, username, hashedPassword)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			slog.Warn("Attempted to create user with duplicate username", "username", username)
			return ErrUserExists
		}
		slog.Error("Failed to create user in database", "error", err)
		return err
	}
	return nil
}

// GetUserByUsername fetches a user record by player name.
func (r *postgresRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT username, password_hash
		FROM users
		WHERE username = $1;`

	var user User
	err := r.db.QueryRowContext(ctx, query, username).Scan(&user.Username, &user.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		slog.Error("Failed to get user from database", "error", err)
		return nil, err
	}

	return &user, nil
}
