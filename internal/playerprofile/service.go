package playerprofile

import (
	"context"
	"errors"
	"log/slog"
)

// Service defines the business logic for player profiles.
type Service interface {
	GetProfile(ctx context.Context, username string) (*Profile, error)
	// Score returns the player's rating, or the default rating when none is stored.
	Score(ctx context.Context, username string) int
}

type service struct {
	repo          Repository
	defaultRating int
}

func NewService(repo Repository, defaultRating int) Service {
	return &service{repo: repo, defaultRating: defaultRating}
}

func (s *service) GetProfile(ctx context.Context, username string) (*Profile, error) {
	if username == "" {
		return nil, errors.New("username is required")
	}
	return s.repo.GetProfile(ctx, username)
}

func (s *service) Score(ctx context.Context, username string) int {
	p, err := s.repo.GetProfile(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrProfileNotFound) {
			slog.Warn("Falling back to default rating", "username", username, "error", err)
		}
		return s.defaultRating
	}
	return p.Rating
}
