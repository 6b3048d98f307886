package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/quillworks/inkwell/internal/domain"
	"github.com/quillworks/inkwell/internal/store"
	"github.com/quillworks/inkwell/pkg/idx"
)

type usersRepo struct {
	q dbtx
}

const userColumns = `id, email, name, profile_pic_url, password_hash, status, created_at, updated_at`

func (r *usersRepo) GetUserByID(ctx context.Context, id idx.ID) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id.String())

	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.Roles, err = r.activeRoles(ctx, u.ID)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)

	u, err := scanUser(row)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}

	u.Roles, err = r.activeRoles(ctx, u.ID)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	now := time.Now().UTC()

	_, err := r.q.ExecContext(ctx,
		`INSERT INTO users (id, email, name, profile_pic_url, password_hash, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID.String(), u.Email, u.Name, u.ProfilePicURL, u.PasswordHash, u.Status, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrAlreadyExists
		}
		return err
	}

	for _, role := range u.Roles {
		if _, err := r.q.ExecContext(ctx,
			`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`,
			u.ID.String(), role.ID.String()); err != nil {
			return err
		}
	}
	return nil
}

func (r *usersRepo) UpdateProfile(ctx context.Context, userID idx.ID, name, profilePicURL string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users
		 SET name            = CASE WHEN ? = '' THEN name ELSE ? END,
		     profile_pic_url = CASE WHEN ? = '' THEN profile_pic_url ELSE ? END,
		     updated_at      = ?
		 WHERE id = ?`,
		name, name, profilePicURL, profilePicURL, time.Now().UTC(), userID.String())
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r *usersRepo) SetUserStatus(ctx context.Context, userID idx.ID, status bool) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE users SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), userID.String())
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (r *usersRepo) activeRoles(ctx context.Context, userID idx.ID) ([]domain.Role, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT r.id, r.code, r.status, r.created_at, r.updated_at
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 WHERE ur.user_id = ? AND r.status = 1
		 ORDER BY r.code`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	var id string
	err := row.Scan(&id, &u.Email, &u.Name, &u.ProfilePicURL,
		&u.PasswordHash, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, err
	}
	u.ID = idx.ID(id)
	return u, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func affectedOrNotFound(res interface{ RowsAffected() (int64, error) }) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
