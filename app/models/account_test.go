package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountIssueAPIKey(t *testing.T) {
	a := &Account{ID: 1}

	key, err := a.IssueAPIKey()
	require.NoError(t, err)
	require.NotEmpty(t, key)

	assert.True(t, strings.HasPrefix(key, "cd_"))
	assert.NotEmpty(t, a.APIKeyHash)
	assert.Equal(t, key[:8], a.APIKeyPrefix)
	assert.NotNil(t, a.APIKeyCreatedAt)
	assert.Nil(t, a.APIKeyLastUsedAt)
	assert.True(t, a.HasActiveAPIKey())
	assert.Equal(t, HashAPIKey(key), a.APIKeyHash)
}

func TestAccountIssueAPIKeyRotates(t *testing.T) {
	a := &Account{ID: 1}

	first, err := a.IssueAPIKey()
	require.NoError(t, err)
	second, err := a.IssueAPIKey()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, HashAPIKey(second), a.APIKeyHash)
	assert.NotEqual(t, HashAPIKey(first), a.APIKeyHash)
}

func TestAccountPassword(t *testing.T) {
	a := &Account{}
	require.NoError(t, a.SetPassword("hunter22"))

	assert.NotEqual(t, "hunter22", a.Password)
	assert.True(t, a.CheckPassword("hunter22"))
	assert.False(t, a.CheckPassword("hunter2"))
}

func TestAccountRoleAndStatus(t *testing.T) {
	a := &Account{Role: RoleCitizen, Status: AccountStatusActive}
	assert.True(t, a.IsActive())
	assert.False(t, a.IsAdmin())

	a.Role = RoleAdmin
	a.Status = AccountStatusDisabled
	assert.True(t, a.IsAdmin())
	assert.False(t, a.IsActive())
}

func TestAccountFullName(t *testing.T) {
	a := &Account{FirstName: "Maria", LastName: "Lang"}
	assert.Equal(t, "Maria Lang", a.FullName())
}
