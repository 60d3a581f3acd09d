package oauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCallbackURL(t *testing.T) {
	t.Setenv("PUBLIC_DOMAIN", "https://plan.example.com/")
	assert.Equal(t, "https://plan.example.com/auth/google/callback", CallbackURL("/auth/google/callback"))

	t.Setenv("PUBLIC_DOMAIN", "")
	t.Setenv("APP_PORT", "8080")
	assert.Equal(t, "http://localhost:8080/api/v1/calendar/callback", CallbackURL("/api/v1/calendar/callback"))
}

func TestSetupWithoutKey(t *testing.T) {
	t.Setenv("GOOGLE_KEY", "")
	assert.False(t, Setup())
}
