// Package identity resolves user ids to display identities for the chat core.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/wirechat-rooms/internal/store"
)

// ErrUserNotFound is returned when the user id is unknown.
var ErrUserNotFound = errors.New("user not found")

// User is the identity consumed by the chat core.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Resolver looks up users by id.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (User, error)
}

// StoreResolver resolves users from the users table.
type StoreResolver struct {
	users store.UserStore
}

// NewStoreResolver creates a resolver backed by users.
func NewStoreResolver(users store.UserStore) *StoreResolver {
	return &StoreResolver{users: users}
}

// Resolve implements Resolver.
func (r *StoreResolver) Resolve(ctx context.Context, userID string) (User, error) {
	u, err := r.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return User{}, fmt.Errorf("resolve user: %w", err)
	}
	return User{ID: u.ID, DisplayName: u.DisplayName}, nil
}
