package users

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemRepo is an in-memory users repo used by handler tests across packages.
type MemRepo struct {
	mutex sync.Mutex
	Users map[int]*User
}

func NewMemRepo() *MemRepo {
	return &MemRepo{
		Users: make(map[int]*User),
	}
}

func (r *MemRepo) Register(_ context.Context, user *User) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	user.Email = strings.ToLower(user.Email)
	user.Role = RoleAdmin
	for _, u := range r.Users {
		if u.Email == user.Email {
			return ErrEmailTaken
		}
		if u.IsAdmin() {
			user.Role = RoleReader
		}
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.ID = len(r.Users) + 1
	stored := *user
	r.Users[user.ID] = &stored

	return nil
}

func (r *MemRepo) ByEmail(_ context.Context, email string) (*User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, u := range r.Users {
		if u.Email == strings.ToLower(email) {
			found := *u
			return &found, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemRepo) ByID(_ context.Context, id int) (*User, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	u, ok := r.Users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	found := *u
	return &found, nil
}

func (r *MemRepo) Count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.Users)
}
