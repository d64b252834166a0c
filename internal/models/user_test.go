package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserRoleGoverns(t *testing.T) {
	assert.True(t, RoleSuperAdmin.Governs(RoleSuperAdmin))
	assert.True(t, RoleSuperAdmin.Governs(RoleStudent))
	assert.True(t, RoleAdmin.Governs(RoleAdmin))
	assert.False(t, RoleAdmin.Governs(RoleSuperAdmin))
	assert.False(t, RoleStudent.Governs(RoleStudent))
	assert.False(t, UserRole("").Governs(RoleStudent))
}

func TestUserRoleStaffAndValid(t *testing.T) {
	assert.True(t, RoleAdmin.Staff())
	assert.False(t, RoleStudent.Staff())
	assert.True(t, RoleStudent.Valid())
	assert.False(t, UserRole("GUEST").Valid())
}
