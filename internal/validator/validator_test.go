package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckKeepsFirstMessage(t *testing.T) {
	v := New()
	v.Check(false, "email", "must be provided")
	v.Check(false, "email", "must be a valid email address")
	v.Check(true, "name", "must be provided")

	assert.False(t, v.IsValid())
	assert.Equal(t, map[string]string{"email": "must be provided"}, v.Errors)
}

func TestEmailRX(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"ana.garcia@clinica.co", true},
		{"admin@localhost", true},
		{"missing-at.example.com", false},
		{"two@@example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.valid, EmailRX.MatchString(tt.email))
		})
	}
}

func TestPermittedAndUnique(t *testing.T) {
	assert.True(t, Permitted("-ainfecing", "ainfecing", "-ainfecing"))
	assert.False(t, Permitted("password", "ainfecing", "-ainfecing"))
	assert.True(t, Permitted(4, 1, 2, 4))

	assert.True(t, Unique([]string{"a", "b"}))
	assert.False(t, Unique([]int{1, 2, 1}))
}
