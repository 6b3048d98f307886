package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/quillworks/inkwell/internal/domain"
	"github.com/quillworks/inkwell/internal/store"
	"github.com/quillworks/inkwell/pkg/idx"
)

type apiKeysRepo struct {
	q dbtx
}

func (r *apiKeysRepo) GetByKey(ctx context.Context, key string) (domain.APIKey, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, key, permissions, status, created_at, updated_at
		 FROM api_keys WHERE key = ? AND status = 1`, key)

	var k domain.APIKey
	var id, permissions string
	err := row.Scan(&id, &k.Key, &permissions, &k.Status, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return domain.APIKey{}, mapNotFound(err)
	}
	k.ID = idx.ID(id)
	k.Permissions = splitPermissions(permissions)
	return k, nil
}

func (r *apiKeysRepo) CreateAPIKey(ctx context.Context, k domain.APIKey) error {
	now := time.Now().UTC()

	perms := make([]string, 0, len(k.Permissions))
	for _, p := range k.Permissions {
		perms = append(perms, string(p))
	}

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO api_keys (id, key, permissions, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		k.ID.String(), k.Key, strings.Join(perms, " "), k.Status, now, now)
	if err != nil && isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *apiKeysRepo) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_keys`).Scan(&n); err != nil {
		return false, err
	}
	return n == 0, nil
}

func splitPermissions(s string) []domain.Permission {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	out := make([]domain.Permission, 0, len(fields))
	for _, f := range fields {
		out = append(out, domain.Permission(f))
	}
	return out
}
