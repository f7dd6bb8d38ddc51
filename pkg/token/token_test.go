package token

import (
	"strings"
	"testing"
	"time"

	"driveo/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func testUser() *model.User {
	return &model.User{ID: "507f1f77bcf86cd799439011", Email: "rider@example.com", Role: model.RoleUser}
}

func TestIssueAndParse(t *testing.T) {
	m := NewManager(secret, "driveo", 15*time.Minute, 24*time.Hour)

	pair, err := m.Issue(testUser())
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	claims, err := m.Parse(pair.AccessToken, TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "507f1f77bcf86cd799439011", claims.UserID())
	assert.Equal(t, model.RoleUser, claims.Role)
	assert.Equal(t, "rider@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestParse_RejectsWrongType(t *testing.T) {
	m := NewManager(secret, "driveo", time.Minute, time.Hour)
	pair, err := m.Issue(testUser())
	require.NoError(t, err)

	_, err = m.Parse(pair.AccessToken, TypeRefresh)
	assert.ErrorIs(t, err, ErrWrongType)

	_, err = m.Parse(pair.RefreshToken, TypeRefresh)
	assert.NoError(t, err)
}

func TestParse_Expired(t *testing.T) {
	m := NewManager(secret, "driveo", time.Minute, time.Hour)
	issuedAt := time.Now().Add(-2 * time.Hour)
	m.now = func() time.Time { return issuedAt }

	pair, err := m.Issue(testUser())
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Parse(pair.AccessToken, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_TamperedAndForeign(t *testing.T) {
	m := NewManager(secret, "driveo", time.Minute, time.Hour)
	pair, err := m.Issue(testUser())
	require.NoError(t, err)

	other := NewManager(strings.Repeat("x", 32), "driveo", time.Minute, time.Hour)
	_, err = other.Parse(pair.AccessToken, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken, "different secret")

	wrongIssuer := NewManager(secret, "someone-else", time.Minute, time.Hour)
	_, err = wrongIssuer.Parse(pair.AccessToken, TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken, "different issuer")

	_, err = m.Parse(pair.AccessToken+"x", TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken, "tampered signature")

	_, err = m.Parse("garbage", TypeAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
