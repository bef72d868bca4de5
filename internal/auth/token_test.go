package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestIssueAndValidate(t *testing.T) {
	m, err := NewTokenManager(secret, time.Hour)
	require.NoError(t, err)

	token, claims, err := m.Issue("")
	require.NoError(t, err)
	assert.NotEmpty(t, claims.SessionID)

	got, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, claims.SessionID, got.SessionID)
}

func TestIssueKeepsSessionID(t *testing.T) {
	m, err := NewTokenManager(secret, time.Hour)
	require.NoError(t, err)

	_, claims, err := m.Issue("viewer-1")
	require.NoError(t, err)
	assert.Equal(t, "viewer-1", claims.SessionID)
}

func TestValidateRejects(t *testing.T) {
	m, err := NewTokenManager(secret, time.Hour)
	require.NoError(t, err)
	other, err := NewTokenManager("fedcba9876543210fedcba9876543210", time.Hour)
	require.NoError(t, err)

	token, _, err := other.Issue("")
	require.NoError(t, err)
	_, err = m.Validate(token)
	assert.Error(t, err, "wrong secret")

	_, err = m.Validate("not-a-token")
	assert.Error(t, err)

	issued := time.Now()
	m.now = func() time.Time { return issued }
	token, _, err = m.Issue("")
	require.NoError(t, err)
	m.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = m.Validate(token)
	assert.Error(t, err, "expired")
}

func TestNewTokenManagerRequiresLongSecret(t *testing.T) {
	_, err := NewTokenManager("short", time.Hour)
	assert.Error(t, err)
}
