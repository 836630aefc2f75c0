// Package users defines the user directory collaborator contract. The
// engine stores user identifiers opaquely and only consults the directory
// to resolve display fields on read models.
package users

import "context"

// User carries the display fields the engine ever needs from the CRM's
// user store.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// Directory resolves user identifiers to display fields. Lookup returns
// nil (no error) for unknown identifiers; the engine trusts ids it stores
// and degrades to showing the raw identifier.
type Directory interface {
	Lookup(ctx context.Context, id string) (*User, error)
}

// StaticDirectory is a fixed in-process directory for tests and
// single-binary deployments without a CRM user service.
type StaticDirectory struct {
	users map[string]User
}

// NewStaticDirectory creates a directory over a fixed set of users.
func NewStaticDirectory(users ...User) *StaticDirectory {
	byID := make(map[string]User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}

	return &StaticDirectory{users: byID}
}

// Lookup returns the user for the given id, or nil if unknown.
func (d *StaticDirectory) Lookup(_ context.Context, id string) (*User, error) {
	user, ok := d.users[id]
	if !ok {
		return nil, nil
	}

	return &user, nil
}
