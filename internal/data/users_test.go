package data

import (
	"testing"

	"github.com/pedroarca/censoapi/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordSetAndMatches(t *testing.T) {
	var p Password
	require.NoError(t, p.Set("Secr3t!pass"))

	ok, err := p.Matches("Secr3t!pass")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Matches("wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordMatchesLegacySalt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Secr3t!pass"+"a1b2c3"), bcrypt.MinCost)
	require.NoError(t, err)
	p := Password{hash: hash, salt: "a1b2c3"}

	ok, err := p.Matches("Secr3t!pass")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, p.Set("N3w!password"))
	assert.Empty(t, p.salt)
}

func TestAnonymousUser(t *testing.T) {
	assert.True(t, AnonymousUser.IsAnonymous())
	assert.False(t, (&User{}).IsAnonymous())
}

func TestValidateLogin(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		wantKeys []string
	}{
		{name: "valid", email: "ana@example.com", password: "x"},
		{name: "missing both", wantKeys: []string{"email", "password"}},
		{name: "bad email", email: "ana", password: "x", wantKeys: []string{"email"}},
		{name: "password too long", email: "ana@example.com", password: string(make([]byte, 201)), wantKeys: []string{"password"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validator.New()
			ValidateLogin(v, tt.email, tt.password)
			assert.Len(t, v.Errors, len(tt.wantKeys))
			for _, key := range tt.wantKeys {
				assert.Contains(t, v.Errors, key)
			}
		})
	}
}

func TestValidateUser(t *testing.T) {
	newUser := func(name, email, password string, role int64) *User {
		u := &User{Name: name, Email: email, Role: role}
		if password != "" {
			u.Password.plaintext = &password
		}
		return u
	}

	tests := []struct {
		name     string
		user     *User
		wantKeys []string
	}{
		{name: "valid", user: newUser("Ana", "ana@example.com", "Secr3t!pass", RoleUser)},
		{name: "no password change", user: newUser("Ana", "ana@example.com", "", RoleSupervisor)},
		{name: "missing name", user: newUser("", "ana@example.com", "", RoleUser), wantKeys: []string{"name"}},
		{name: "weak password", user: newUser("Ana", "ana@example.com", "password", RoleUser), wantKeys: []string{"password"}},
		{name: "unknown role", user: newUser("Ana", "ana@example.com", "", 3), wantKeys: []string{"role"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validator.New()
			ValidateUser(v, tt.user, allRoles)
			assert.Len(t, v.Errors, len(tt.wantKeys))
			for _, key := range tt.wantKeys {
				assert.Contains(t, v.Errors, key)
			}
		})
	}
}
