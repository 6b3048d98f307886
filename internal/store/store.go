package store

import (
	"context"
	"errors"

	"github.com/quillworks/inkwell/internal/domain"
	"github.com/quillworks/inkwell/pkg/idx"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. The handle is constructed once at bootstrap and injected
// into every component; nothing in the core reaches for a global client.
type Store interface {
	Users() Users
	Roles() Roles
	Keystore() Keystore
	APIKeys() APIKeys

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// GetUserByID returns a user with their active roles populated.
	GetUserByID(ctx context.Context, id idx.ID) (domain.User, error)

	// GetUserByEmail is used during login and duplicate-signup checks.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user and their role assignments
	// (id is provided by the app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateProfile mutates name/profile_pic_url and bumps updated_at.
	// Empty fields are left unchanged.
	UpdateProfile(ctx context.Context, userID idx.ID, name, profilePicURL string) error

	// SetUserStatus flips the soft-delete flag. Users are never hard-deleted.
	SetUserStatus(ctx context.Context, userID idx.ID, status bool) error
}

type Roles interface {
	// GetRoleByCode fetches an active role by its code (signup default role).
	GetRoleByCode(ctx context.Context, code domain.RoleCode) (domain.Role, error)

	// FindActiveByCodes returns the active roles matching any of the codes.
	// Unknown or inactive codes are simply absent from the result.
	FindActiveByCodes(ctx context.Context, codes []domain.RoleCode) ([]domain.Role, error)
}

type Keystore interface {
	// CreateEntry stores a new token-pair record. Session issuance is the
	// only caller.
	CreateEntry(ctx context.Context, e domain.KeystoreEntry) error

	// FindByPrimaryKey returns the active entry matching the access-token
	// secret fingerprint for this user.
	FindByPrimaryKey(ctx context.Context, userID idx.ID, primaryHash string) (domain.KeystoreEntry, error)

	// FindExact returns the active entry matching both secret fingerprints
	// for this user. Used only during refresh.
	FindExact(ctx context.Context, userID idx.ID, primaryHash, secondaryHash string) (domain.KeystoreEntry, error)

	// DeleteEntry removes one entry and reports whether a row was actually
	// removed. Concurrent refreshes race on this: exactly one caller may
	// observe true.
	DeleteEntry(ctx context.Context, id idx.ID) (bool, error)

	// DeleteAllForUser removes every entry for a user (deactivation).
	DeleteAllForUser(ctx context.Context, userID idx.ID) error
}

type APIKeys interface {
	// GetByKey returns an active API key by its key string.
	GetByKey(ctx context.Context, key string) (domain.APIKey, error)

	// CreateAPIKey inserts a new key record.
	CreateAPIKey(ctx context.Context, k domain.APIKey) error

	// IsEmpty returns true if there are no API keys (bootstrap check).
	IsEmpty(ctx context.Context) (bool, error)
}
