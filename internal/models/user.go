package models

import (
	"strconv"
	"time"
)

type User struct {
	ID             int64
	CreatedAt      time.Time
	Username       string
	Email          *string // nil if not provided on sign up
	HashedPassword string
}

// Subject returns the token subject that identifies the user
func (u User) Subject() string {
	return strconv.FormatInt(u.ID, 10)
}
