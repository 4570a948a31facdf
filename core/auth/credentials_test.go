package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maktab-uz/maktab/core/user"
)

func TestAuthenticator_Authenticate(t *testing.T) {
	e := newEnv(t)
	active := e.createUser(t, "+998901234567", "Tashkent#2024", true)
	e.createUser(t, "+998907654321", "Tashkent#2024", false)

	tests := []struct {
		name    string
		phone   string
		pwd     string
		wantErr error
	}{
		{name: "unknown phone", phone: "+998900000000", pwd: "Tashkent#2024", wantErr: ErrAuthenticationFailed},
		{name: "blank phone", phone: "", pwd: "Tashkent#2024", wantErr: ErrAuthenticationFailed},
		{name: "wrong password", phone: "+998901234567", pwd: "Tashkent#2025", wantErr: ErrAuthenticationFailed},
		{name: "deactivated", phone: "+998907654321", pwd: "Tashkent#2024", wantErr: ErrAuthenticationFailed},
		{name: "valid", phone: "+998901234567", pwd: "Tashkent#2024"},
		{name: "valid with a formatted phone", phone: " +998 90 123-45-67 ", pwd: "Tashkent#2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := e.authn.Authenticate(context.Background(), tt.phone, tt.pwd)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				assert.Empty(t, usr.ID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, active.ID, usr.ID)
		})
	}
}

func TestAuthenticator_Login(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	usr := e.createUser(t, "+998901234567", "Tashkent#2024", true, user.RoleStudent)
	require.False(t, usr.LastLogin.Valid)

	now := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	user.NowFunc = func() time.Time { return now }
	defer func() { user.NowFunc = time.Now }()

	_, _, err := e.authn.Login(ctx, usr.Phone, "lol")
	assert.Equal(t, ErrAuthenticationFailed, err)

	pair, logged, err := e.authn.Login(ctx, usr.Phone, "Tashkent#2024")
	require.NoError(t, err)
	assert.Equal(t, usr.ID, logged.ID)
	assert.True(t, logged.LastLogin.Valid)
	assert.Equal(t, now, logged.LastLogin.Time)

	stored, err := e.users.GetByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, now, stored.LastLogin.Time)

	claims, err := e.tokens.ParseAccess(ctx, pair.Access)
	require.NoError(t, err)
	assert.Equal(t, usr.ID, claims.Subject)
	assert.Equal(t, user.NewRoles(user.RoleStudent), claims.UserRoles())
}
