package domain

import (
	"time"

	"github.com/quillworks/inkwell/pkg/idx"
)

// User is the identity record. Users are never hard-deleted; deactivation
// flips Status instead so historical content keeps a valid author.
type User struct {
	ID            idx.ID
	Email         string
	Name          string
	ProfilePicURL string
	PasswordHash  string // argon2id encoded; empty for externally provisioned accounts
	Roles         []Role // active roles only
	Status        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasRole reports whether the user carries the given role id.
func (u User) HasRole(roleID idx.ID) bool {
	for _, r := range u.Roles {
		if r.ID == roleID {
			return true
		}
	}
	return false
}
