package memory

import (
	"context"
	"sync"
	"time"

	"github.com/nkiryanov/gophersession/internal/apperrors"
	"github.com/nkiryanov/gophersession/internal/models"
	"github.com/nkiryanov/gophersession/internal/repository"
)

type UserRepo struct {
	mu         sync.RWMutex
	lastID     int64
	byID       map[int64]models.User
	byUsername map[string]int64
}

func NewUserRepo() *UserRepo {
	return &UserRepo{
		byID:       make(map[int64]models.User),
		byUsername: make(map[string]int64),
	}
}

func (r *UserRepo) CreateUser(ctx context.Context, arg repository.CreateUserParams) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[arg.Username]; ok {
		return models.User{}, apperrors.ErrUserAlreadyExists
	}

	r.lastID++
	user := models.User{
		ID:             r.lastID,
		CreatedAt:      time.Now().UTC(),
		Username:       arg.Username,
		Email:          arg.Email,
		HashedPassword: arg.PasswordHash,
	}
	r.byID[user.ID] = user
	r.byUsername[user.Username] = user.ID

	return user, nil
}

func (r *UserRepo) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return user, nil
}

func (r *UserRepo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[username]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}
	return r.byID[id], nil
}
