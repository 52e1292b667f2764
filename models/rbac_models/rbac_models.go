package rbac_models

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/joy095/booking-core/logger"
	"github.com/joy095/booking-core/models/shared_models"
)

// Role bundles permissions; users hold zero or more roles.
type Role struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Permission is a named capability.
type Permission struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// RolePermissionPair is one role -> permission-name edge, joined to names so
// the graph cache never needs a second lookup.
type RolePermissionPair struct {
	RoleID         uuid.UUID `json:"role_id"`
	PermissionName string    `json:"permission_name"`
}

// LoadRolePermissionPairs fetches the full role -> permission adjacency.
func LoadRolePermissionPairs(ctx context.Context, db shared_models.DB) ([]RolePermissionPair, error) {
	rows, err := db.Query(ctx, `
		SELECT rp.role_id, p.name
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id`)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to load role permissions: %v", err)
		return nil, fmt.Errorf("failed to load role permissions: %w", err)
	}
	defer rows.Close()

	var pairs []RolePermissionPair
	for rows.Next() {
		var p RolePermissionPair
		if err := rows.Scan(&p.RoleID, &p.PermissionName); err != nil {
			return nil, fmt.Errorf("failed to scan role permission: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// LoadUserRoleIDs fetches the role ids held by a user.
func LoadUserRoleIDs(ctx context.Context, db shared_models.DB, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := db.Query(ctx, `SELECT role_id FROM user_roles WHERE user_id = $1`, userID)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to load roles for user %s: %v", userID, err)
		return nil, fmt.Errorf("failed to load user roles: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user role: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
