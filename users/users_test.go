package users_test

import (
	"testing"

	"github.com/jrsteele09/go-oauth2-framework/users"
	"github.com/stretchr/testify/require"
)

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "Password123", false},
		{"too short", "Pa1", true},
		{"no upper", "password123", true},
		{"no lower", "PASSWORD123", true},
		{"no number", "PasswordABC", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := users.ValidatePasswordStrength(tt.password)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := users.HashPassword("123456")
	require.NoError(t, err)
	require.NotEqual(t, "123456", hash)

	user := &users.User{PasswordHash: hash}
	require.True(t, user.CheckPassword("123456"))
	require.False(t, user.CheckPassword("wrong"))
}

func TestNormaliseUsername(t *testing.T) {
	require.Equal(t, "demo", users.NormaliseUsername("  Demo "))
}
