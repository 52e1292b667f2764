package permissions

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/joy095/booking-core/models/rbac_models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermissionUnionsRoles(t *testing.T) {
	ownerRole := uuid.New()
	adminRole := uuid.New()
	customer := uuid.New()
	admin := uuid.New()
	nobody := uuid.New()

	graph := NewGraph(
		func(ctx context.Context) ([]rbac_models.RolePermissionPair, error) {
			return []rbac_models.RolePermissionPair{
				{RoleID: ownerRole, PermissionName: "booking:transition"},
				{RoleID: adminRole, PermissionName: "booking:read"},
				{RoleID: adminRole, PermissionName: "healing:trigger"},
			}, nil
		},
		func(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
			switch userID {
			case customer:
				return []uuid.UUID{ownerRole}, nil
			case admin:
				return []uuid.UUID{ownerRole, adminRole}, nil
			default:
				return nil, nil
			}
		},
		0,
	)
	ctx := context.Background()

	allowed, err := graph.HasPermission(ctx, customer, "booking:transition")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = graph.HasPermission(ctx, customer, "healing:trigger")
	require.NoError(t, err)
	assert.False(t, allowed)

	// The effective set is the union across both roles.
	for _, perm := range []string{"booking:transition", "booking:read", "healing:trigger"} {
		allowed, err = graph.HasPermission(ctx, admin, perm)
		require.NoError(t, err)
		assert.True(t, allowed, perm)
	}

	allowed, err = graph.HasPermission(ctx, nobody, "booking:read")
	require.NoError(t, err)
	assert.False(t, allowed, "a user with no roles has no permissions")
}

func TestInvalidateForcesReload(t *testing.T) {
	role := uuid.New()
	user := uuid.New()
	calls := 0

	graph := NewGraph(
		func(ctx context.Context) ([]rbac_models.RolePermissionPair, error) {
			calls++
			return []rbac_models.RolePermissionPair{{RoleID: role, PermissionName: "booking:create"}}, nil
		},
		func(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
			return []uuid.UUID{role}, nil
		},
		0,
	)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := graph.HasPermission(ctx, user, "booking:create")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)

	graph.Invalidate()
	_, err := graph.HasPermission(ctx, user, "booking:create")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestLoaderFailuresPropagate(t *testing.T) {
	boom := errors.New("relation does not exist")

	graph := NewGraph(
		func(ctx context.Context) ([]rbac_models.RolePermissionPair, error) {
			return nil, boom
		},
		func(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
			return nil, nil
		},
		0,
	)

	_, err := graph.HasPermission(context.Background(), uuid.New(), "booking:create")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
