package playerprofile

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
)

var ErrProfileNotFound = errors.New("profile not found")

// Profile is the part of a player's profile the matchmaker cares about.
type Profile struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Wins     int    `json:"wins"`
	Losses   int    `json:"losses"`
}

// Repository defines the database operations for player profiles.
type Repository interface {
	GetProfile(ctx context.Context, username string) (*Profile, error)
}

type postgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &postgresRepository{db: db}
}

// GetProfile retrieves a player profile from the database by player name.
func (r *postgresRepository) GetProfile(ctx context.Context, username string) (*Profile, error) {
	query := `
		SELECT username, rating, stats_wins, stats_losses
		FROM profiles
		WHERE username = $1;
	`
	var p Profile
	err := r.db.QueryRowContext(ctx, query, username).Scan(&p.Username, &p.Rating, &p.Wins, &p.Losses)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		slog.Error("Failed to get profile from database", "error", err)
		return nil, err
	}
	return &p, nil
}
