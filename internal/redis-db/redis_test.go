package redis_db

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name         string
		rawURL       string
		expectedAddr string
		expectedPass string
	}{
		{"docker style address", "redis:6379", "redis:6379", ""},
		{"localhost", "localhost:6379", "localhost:6379", ""},
		{"url with scheme", "redis://localhost:6379", "localhost:6379", ""},
		{"url with password", "redis://secret@localhost:6379", "localhost:6379", "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := ParseRedisURL(tt.rawURL, false)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedAddr, opts.Addr)
			assert.Equal(t, tt.expectedPass, opts.Password)
		})
	}
}

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewRedisClient([]string{mr.Addr()}, false)
	require.NoError(t, err)

	err = client.Client().Ping(context.Background()).Err()
	assert.NoError(t, err)
	assert.Equal(t, []string{mr.Addr()}, client.Addresses())
}

func TestNewRedisClientEmptyAddresses(t *testing.T) {
	_, err := NewRedisClient([]string{}, false)
	assert.Error(t, err)
}
