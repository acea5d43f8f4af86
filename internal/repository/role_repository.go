package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"idea-portal/internal/models"
)

// RoleRepository handles role database operations
type RoleRepository struct {
	db *sql.DB
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *sql.DB) *RoleRepository {
	return &RoleRepository{db: db}
}

// GetByName retrieves a role by name
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM roles
		WHERE name = $1
	`

	role := &models.Role{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	return role, nil
}

// List retrieves all roles with the number of active users holding each
func (r *RoleRepository) List(ctx context.Context) ([]models.RoleSummary, error) {
	query := `
		SELECT ro.id, ro.name, ro.description, ro.created_at, ro.updated_at, COUNT(u.id)
		FROM roles ro
		LEFT JOIN user_roles ur ON ur.role_id = ro.id
		LEFT JOIN users u ON u.id = ur.user_id AND u.is_active = TRUE
		GROUP BY ro.id
		ORDER BY ro.name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get roles: %w", err)
	}
	defer rows.Close()

	roles := []models.RoleSummary{}
	for rows.Next() {
		var role models.RoleSummary
		if err := rows.Scan(
			&role.ID,
			&role.Name,
			&role.Description,
			&role.CreatedAt,
			&role.UpdatedAt,
			&role.ActiveUsers,
		); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}
