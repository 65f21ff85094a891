package migration

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/smallbiznis/subsight/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	assert.Equal(t, 2, ups)
	assert.Equal(t, ups, downs)
}

func TestRunAutoMigratesSQLite(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	require.NoError(t, Run(context.Background(), conn, db.TypeSQLite, zap.NewNop()))

	for _, table := range []string{"users", "subscriptions", "payments", "user_activity", "generation_runs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}

	// Idempotent.
	require.NoError(t, Run(context.Background(), conn, db.TypeSQLite, zap.NewNop()))
}

func TestRunRequiresConnection(t *testing.T) {
	assert.Error(t, Run(context.Background(), nil, db.TypeSQLite, nil))
}
