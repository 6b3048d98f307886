package domain

import (
	"time"

	"github.com/quillworks/inkwell/pkg/idx"
)

// RoleCode names a role. Static reference data seeded by migration.
type RoleCode string

const (
	RoleLearner RoleCode = "LEARNER"
	RoleWriter  RoleCode = "WRITER"
	RoleEditor  RoleCode = "EDITOR"
	RoleAdmin   RoleCode = "ADMIN"
)

type Role struct {
	ID        idx.ID
	Code      RoleCode
	Status    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
