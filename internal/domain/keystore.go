package domain

import (
	"time"

	"github.com/quillworks/inkwell/pkg/idx"
)

// KeystoreEntry is the server-side record for one live token pair. The
// access token carries the primary secret, the refresh token the secondary;
// only fingerprints are persisted. The entry is the sole authority on
// whether the pair is still valid: signature validity alone is never
// sufficient, which is what makes logout and rotation instantly effective.
//
// A primary fingerprint is never reused across entries (enforced by a
// unique index; the secrets are 512-bit random values).
type KeystoreEntry struct {
	ID               idx.ID
	UserID           idx.ID
	PrimaryKeyHash   string
	SecondaryKeyHash string
	Status           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
