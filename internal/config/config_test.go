package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripToHostname(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"https://api.casefile.io", "api.casefile.io"},
		{"http://localhost:8080", "localhost"},
		{"api.casefile.io:443", "api.casefile.io"},
		{"https://api.casefile.io/v1/anything", "api.casefile.io"},
		{"localhost", "localhost"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripToHostname(tt.in), "in %q", tt.in)
	}
}

func TestParseOrigins(t *testing.T) {
	t.Parallel()

	assert.Nil(t, parseOrigins(""))
	assert.Equal(t, []string{"https://a.io"}, parseOrigins("https://a.io"))
	assert.Equal(t,
		[]string{"https://a.io", "http://localhost:3000"},
		parseOrigins(" https://a.io , http://localhost:3000 ,, "))
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"ENV", "PORT", "HOST", "FRONTEND_URL", "ALLOWED_ORIGINS", "SHARE_BASE_URL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.False(t, cfg.IsProduction())
	// Host check disabled outside production.
	assert.Empty(t, cfg.AllowedHost)
	assert.NotEmpty(t, cfg.AllowedOrigins)
	assert.Equal(t, "http://localhost:3000/share", cfg.ShareBaseURL)
}

func TestLoad_Production(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("HOST", "https://api.casefile.io")
	t.Setenv("SHARE_BASE_URL", "https://app.casefile.io/share/")

	cfg := Load()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "api.casefile.io", cfg.AllowedHost)
	// Trailing slash is stripped so token concatenation stays clean.
	assert.Equal(t, "https://app.casefile.io/share", cfg.ShareBaseURL)
}
