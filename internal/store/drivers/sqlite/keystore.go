package sqlite

import (
	"context"
	"time"

	"github.com/quillworks/inkwell/internal/domain"
	"github.com/quillworks/inkwell/internal/store"
	"github.com/quillworks/inkwell/pkg/idx"
)

type keystoreRepo struct {
	q dbtx
}

const keystoreColumns = `id, user_id, primary_key_hash, secondary_key_hash, status, created_at, updated_at`

func (r *keystoreRepo) CreateEntry(ctx context.Context, e domain.KeystoreEntry) error {
	now := time.Now().UTC()

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO keystore_entries
		 (id, user_id, primary_key_hash, secondary_key_hash, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.UserID.String(), e.PrimaryKeyHash, e.SecondaryKeyHash, e.Status, now, now)
	if err != nil && isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (r *keystoreRepo) FindByPrimaryKey(ctx context.Context, userID idx.ID, primaryHash string) (domain.KeystoreEntry, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+keystoreColumns+` FROM keystore_entries
		 WHERE user_id = ? AND primary_key_hash = ? AND status = 1`,
		userID.String(), primaryHash)

	e, err := scanKeystoreEntry(row)
	if err != nil {
		return domain.KeystoreEntry{}, mapNotFound(err)
	}
	return e, nil
}

func (r *keystoreRepo) FindExact(ctx context.Context, userID idx.ID, primaryHash, secondaryHash string) (domain.KeystoreEntry, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+keystoreColumns+` FROM keystore_entries
		 WHERE user_id = ? AND primary_key_hash = ? AND secondary_key_hash = ? AND status = 1`,
		userID.String(), primaryHash, secondaryHash)

	e, err := scanKeystoreEntry(row)
	if err != nil {
		return domain.KeystoreEntry{}, mapNotFound(err)
	}
	return e, nil
}

// DeleteEntry is atomic and conditioned on existence: of two concurrent
// refreshes racing to rotate the same pair, exactly one sees true here.
func (r *keystoreRepo) DeleteEntry(ctx context.Context, id idx.ID) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM keystore_entries WHERE id = ?`, id.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *keystoreRepo) DeleteAllForUser(ctx context.Context, userID idx.ID) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM keystore_entries WHERE user_id = ?`, userID.String())
	return err
}

func scanKeystoreEntry(row rowScanner) (domain.KeystoreEntry, error) {
	var e domain.KeystoreEntry
	var id, userID string
	err := row.Scan(&id, &userID, &e.PrimaryKeyHash, &e.SecondaryKeyHash,
		&e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return domain.KeystoreEntry{}, err
	}
	e.ID = idx.ID(id)
	e.UserID = idx.ID(userID)
	return e, nil
}
