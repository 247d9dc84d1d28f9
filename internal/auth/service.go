package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Minimum username and password length accepted at login.
const minCredentialLength = 3

var (
	ErrInvalidInput       = errors.New("username and password must be at least 3 characters")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Service defines the contract for the auth business logic.
type Service interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (string, error)
}

// Config holds the configuration needed by the auth service.
type Config struct {
	JWTSecret     string
	TokenDuration time.Duration
}

type service struct {
	repo   Repository
	config Config
}

func NewService(repo Repository, config Config) Service {
	return &service{
		repo:   repo,
		config: config,
	}
}

func validCredentials(username, password string) bool {
	return len(username) >= minCredentialLength && len(password) >= minCredentialLength
}

// Register creates a player account with a bcrypt-hashed password.
func (s *service) Register(ctx context.Context, username, password string) error {
	if !validCredentials(username, password) {
		return ErrInvalidInput
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("Failed to hash password", "error", err)
		return err
	}

	if err := s.repo.CreateUser(ctx, username, string(hashedPassword)); err != nil {
		return err
	}

	slog.Info("New player registered", "username", username)
	return nil
}

// Login verifies credentials and returns a JWT on success.
func (s *service) Login(ctx context.Context, username, password string) (string, error) {
	if !validCredentials(username, password) {
		return "", ErrInvalidInput
	}

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		// Same error as an unknown user so names cannot be enumerated.
		return "", ErrInvalidCredentials
	}

	return s.generateJWT(user)
}

// Claims defines the payload for our JWT.
type Claims struct {
	Username string `json:"uname"`
	jwt.RegisteredClaims
}

func (s *service) generateJWT(user *User) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   user.Username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		slog.Error("Failed to sign JWT", "error", err)
		return "", err
	}

	return tokenString, nil
}
