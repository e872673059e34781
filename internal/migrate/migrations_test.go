package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creatordesk/internal/db"
)

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	defer conn.Close()

	all, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, all)

	applied, err := Apply(ctx, conn)
	require.NoError(t, err)
	assert.Len(t, applied, len(all))

	again, err := Apply(ctx, conn)
	require.NoError(t, err)
	assert.Empty(t, again)

	v, err := Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, all[len(all)-1].Version, v)
}
