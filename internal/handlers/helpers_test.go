package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBearerToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer abc123", "abc123"},
		{"  Bearer   abc123  ", "abc123"},
		{"Bearer", ""},
		{"Basic abc123", ""},
		{"abc123", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractBearerToken(tt.header), "header %q", tt.header)
	}
}

func TestFileKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "image", fileKind("image/png"))
	assert.Equal(t, "video", fileKind("video/mp4"))
	assert.Equal(t, "document", fileKind("application/pdf"))
	assert.Equal(t, "document", fileKind(""))
}
