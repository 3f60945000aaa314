// Package memory keeps users and refresh tokens in process memory
// Suitable for tests and single instance deployments where losing sessions on restart is fine
package memory

import (
	"github.com/nkiryanov/gophersession/internal/repository"
)

type Storage struct {
	users   *UserRepo
	refresh *RefreshStore
}

func NewStorage() *Storage {
	return &Storage{
		users:   NewUserRepo(),
		refresh: NewRefreshStore(),
	}
}

func (s *Storage) User() repository.UserRepo {
	return s.users
}

func (s *Storage) Refresh() repository.RefreshStore {
	return s.refresh
}
