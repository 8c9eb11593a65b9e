package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consent-app/config"
)

func TestObjectURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want string
	}{
		{
			name: "derived from endpoint",
			cfg:  config.StorageConfig{Endpoint: "localhost:9000", Bucket: "consent-scripts"},
			want: "http://localhost:9000/consent-scripts/scripts/w-1/v1.js",
		},
		{
			name: "ssl endpoint",
			cfg:  config.StorageConfig{Endpoint: "s3.example.com", Bucket: "b", UseSSL: true},
			want: "https://s3.example.com/b/scripts/w-1/v1.js",
		},
		{
			name: "public cdn",
			cfg:  config.StorageConfig{Endpoint: "minio:9000", Bucket: "b", PublicURL: "https://cdn.example.com/"},
			want: "https://cdn.example.com/scripts/w-1/v1.js",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewMinIOClient(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.ObjectURL("/scripts/w-1/v1.js"))
		})
	}
}
