// Package auth выдаёт access-токены клиентам по email и паролю.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/payflow/internal/apperr"
	"github.com/magabrotheeeer/payflow/internal/lib/password"
	"github.com/magabrotheeeer/payflow/internal/lib/sl"
	"github.com/magabrotheeeer/payflow/internal/models"
	"github.com/magabrotheeeer/payflow/internal/storage"
)

const invalidCredentials = "invalid credentials"

// UserRepository описывает контракт для поиска пользователей.
type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// TokenMaker выпускает токены.
type TokenMaker interface {
	GenerateToken(userID, email, role, customerID string) (string, error)
}

// Session возвращается после успешного входа.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Service отвечает за вход клиентов.
type Service struct {
	users    UserRepository
	jwtMaker TokenMaker
	log      *slog.Logger
}

// New создаёт сервис входа.
func New(users UserRepository, jwtMaker TokenMaker, log *slog.Logger) *Service {
	return &Service{
		users:    users,
		jwtMaker: jwtMaker,
		log:      log,
	}
}

// Login проверяет пароль и выпускает токен. Неизвестный email и неверный
// пароль неразличимы для вызывающего.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (*Session, error) {
	const op = "services.auth.Login"
	log := s.log.With(sl.Op(op))

	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || rawPassword == "" {
		return nil, apperr.Validation("email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.Unauthorized(invalidCredentials)
	}
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		return nil, apperr.Persistence("failed to load user", err)
	}

	if err := password.Compare(user.PasswordHash, rawPassword); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			log.Error("stored password hash is broken", slog.String("user_id", user.ID.String()), sl.Err(err))
		}
		return nil, apperr.Unauthorized(invalidCredentials)
	}

	token, err := s.jwtMaker.GenerateToken(user.ID.String(), user.Email, user.Role, user.CustomerID())
	if err != nil {
		log.Error("failed to issue token", sl.Err(err))
		return nil, err
	}
	log.Info("user logged in", slog.String("user_id", user.ID.String()))
	return &Session{Token: token, User: user}, nil
}
