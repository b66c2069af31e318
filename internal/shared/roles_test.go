package shared_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/toursync/toursync-admin/internal/shared"
)

func TestRoleValid(t *testing.T) {
	assert.True(t, shared.RoleSuperAdmin.Valid())
	assert.True(t, shared.RoleAccountant.Valid())
	assert.False(t, shared.Role("ROOT").Valid())
	assert.False(t, shared.Role("super_admin").Valid())
}

func TestUserStatusValid(t *testing.T) {
	assert.True(t, shared.StatusActive.Valid())
	assert.False(t, shared.StatusDeleted.Valid(), "deleted is not assignable through the API")
	assert.False(t, shared.UserStatus("").Valid())
}

func TestPaginationOffset(t *testing.T) {
	p := shared.NewPagination(3, 10, 45)
	assert.Equal(t, 20, p.Offset())
	assert.Equal(t, 5, p.TotalPages)
	assert.Equal(t, 0, shared.NewPagination(0, 0, 0).Offset())
}
