package domain

import (
	"time"

	"github.com/quillworks/inkwell/pkg/idx"
)

// Permission is a coarse capability attached to an API key.
type Permission string

// PermissionGeneral is the baseline permission every first-party client
// carries. Additional permission levels are configuration, not code.
const PermissionGeneral Permission = "GENERAL"

// APIKey identifies a calling client application, independent of any end
// user. Static reference data, provisioned out of band.
type APIKey struct {
	ID          idx.ID
	Key         string
	Permissions []Permission
	Status      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasPermission reports whether the key carries the given permission.
func (k APIKey) HasPermission(p Permission) bool {
	for _, have := range k.Permissions {
		if have == p {
			return true
		}
	}
	return false
}
