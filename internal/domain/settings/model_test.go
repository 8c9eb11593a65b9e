package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestPutAndAll(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Setting{}))
	ctx := context.Background()

	require.NoError(t, Put(ctx, db, map[string]string{"support_email": "a@example.com", "maintenance": "false"}))
	require.NoError(t, Put(ctx, db, map[string]string{"maintenance": "true"}))

	got, err := All(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"support_email": "a@example.com", "maintenance": "true"}, got)
}
