package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole("ADMIN")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	role, err = ParseRole("DEALER")
	require.NoError(t, err)
	assert.Equal(t, RoleDealer, role)

	for _, raw := range []string{"", "admin", "SUPERUSER", "Dealer "} {
		_, err := ParseRole(raw)
		assert.Error(t, err, "role %q must be rejected", raw)
	}
}

func TestRoleValid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleDealer.Valid())
	assert.False(t, Role("admin").Valid())
	assert.False(t, Role("").Valid())
}

func TestUserDeleted(t *testing.T) {
	user := &User{}
	assert.False(t, user.Deleted())

	now := time.Now()
	user.DeletedAt = &now
	assert.True(t, user.Deleted())
}

func TestUserPatchEmpty(t *testing.T) {
	assert.True(t, UserPatch{}.Empty())

	name := "Updated Motors"
	assert.False(t, UserPatch{BusinessName: &name}.Empty())

	active := false
	assert.False(t, UserPatch{IsActive: &active}.Empty())

	// An explicit clear is a change even though it carries no value.
	assert.False(t, UserPatch{Phone: Null[string]()}.Empty())
}
