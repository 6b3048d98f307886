package sqlite

import (
	"context"
	"strings"

	"github.com/quillworks/inkwell/internal/domain"
	"github.com/quillworks/inkwell/pkg/idx"
)

type rolesRepo struct {
	q dbtx
}

func (r *rolesRepo) GetRoleByCode(ctx context.Context, code domain.RoleCode) (domain.Role, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT id, code, status, created_at, updated_at
		 FROM roles WHERE code = ? AND status = 1`, string(code))

	role, err := scanRole(row)
	if err != nil {
		return domain.Role{}, mapNotFound(err)
	}
	return role, nil
}

func (r *rolesRepo) FindActiveByCodes(ctx context.Context, codes []domain.RoleCode) ([]domain.Role, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(codes)), ",")
	args := make([]any, 0, len(codes))
	for _, c := range codes {
		args = append(args, string(c))
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT id, code, status, created_at, updated_at
		 FROM roles WHERE code IN (`+placeholders+`) AND status = 1
		 ORDER BY code`, args...)
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

func scanRole(row rowScanner) (domain.Role, error) {
	var role domain.Role
	var id, code string
	err := row.Scan(&id, &code, &role.Status, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return domain.Role{}, err
	}
	role.ID = idx.ID(id)
	role.Code = domain.RoleCode(code)
	return role, nil
}
