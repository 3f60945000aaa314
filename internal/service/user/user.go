package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/nkiryanov/gophersession/internal/models"
	"github.com/nkiryanov/gophersession/internal/repository"
	"github.com/nkiryanov/gophersession/internal/service/auth"
)

type UserService struct {
	hasher   auth.PasswordHasher
	userRepo repository.UserRepo
}

func NewService(hasher auth.PasswordHasher, userRepo repository.UserRepo) *UserService {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}

	return &UserService{
		hasher:   hasher,
		userRepo: userRepo,
	}
}

// Register new user
// Returns apperrors.ErrUserAlreadyExists if username is taken
func (s *UserService) CreateUser(ctx context.Context, username string, email *string, password string) (models.User, error) {
	var user models.User

	if password == "" {
		return user, errors.New("password must not be empty")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return user, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err = s.userRepo.CreateUser(ctx, repository.CreateUserParams{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return user, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user, nil
}
