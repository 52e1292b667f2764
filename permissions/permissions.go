package permissions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joy095/booking-core/logger"
	"github.com/joy095/booking-core/models/rbac_models"
	"github.com/joy095/booking-core/models/shared_models"
)

// RolePermissionLoader fetches the role -> permission adjacency.
type RolePermissionLoader func(ctx context.Context) ([]rbac_models.RolePermissionPair, error)

// UserRoleLoader fetches the role ids held by a user.
type UserRoleLoader func(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)

// Graph answers hasPermission queries. The role -> permission-name sets are
// cached on a TTL so a check is O(roles held) regardless of how many
// permissions exist; user -> roles is loaded per call since it is a single
// narrow query and changes more often.
type Graph struct {
	rolePerms RolePermissionLoader
	userRoles UserRoleLoader
	ttl       time.Duration

	mu       sync.RWMutex
	roleSets map[uuid.UUID]map[string]bool
	loadedAt time.Time
}

// NewGraph creates a permission graph over the given loaders.
func NewGraph(rolePerms RolePermissionLoader, userRoles UserRoleLoader, ttl time.Duration) *Graph {
	return &Graph{rolePerms: rolePerms, userRoles: userRoles, ttl: ttl}
}

// NewDBGraph creates a graph backed by the RBAC tables.
func NewDBGraph(db shared_models.DB, ttl time.Duration) *Graph {
	return NewGraph(
		func(ctx context.Context) ([]rbac_models.RolePermissionPair, error) {
			return rbac_models.LoadRolePermissionPairs(ctx, db)
		},
		func(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
			return rbac_models.LoadUserRoleIDs(ctx, db, userID)
		},
		ttl,
	)
}

func (g *Graph) ensureLoaded(ctx context.Context) error {
	g.mu.RLock()
	fresh := g.roleSets != nil && (g.ttl == 0 || time.Since(g.loadedAt) < g.ttl)
	g.mu.RUnlock()
	if fresh {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.roleSets != nil && (g.ttl == 0 || time.Since(g.loadedAt) < g.ttl) {
		return nil
	}

	pairs, err := g.rolePerms(ctx)
	if err != nil {
		logger.ErrorLogger.Errorf("Failed to load role permissions: %v", err)
		return fmt.Errorf("failed to load permission graph: %w", err)
	}

	roleSets := make(map[uuid.UUID]map[string]bool)
	for _, p := range pairs {
		set, ok := roleSets[p.RoleID]
		if !ok {
			set = make(map[string]bool)
			roleSets[p.RoleID] = set
		}
		set[p.PermissionName] = true
	}

	g.roleSets = roleSets
	g.loadedAt = time.Now()
	logger.InfoLogger.Infof("Permission graph loaded: %d roles", len(roleSets))
	return nil
}

// HasPermission reports whether any of the user's roles grants the permission.
// The effective permission set is the union over the user's roles.
func (g *Graph) HasPermission(ctx context.Context, userID uuid.UUID, permission string) (bool, error) {
	if err := g.ensureLoaded(ctx); err != nil {
		return false, err
	}

	roleIDs, err := g.userRoles(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load roles for user %s: %w", userID, err)
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, roleID := range roleIDs {
		if g.roleSets[roleID][permission] {
			return true, nil
		}
	}
	return false, nil
}

// Invalidate forces a rebuild on the next check. Call after any edit to
// role-permission assignments.
func (g *Graph) Invalidate() {
	g.mu.Lock()
	g.roleSets = nil
	g.mu.Unlock()
}
