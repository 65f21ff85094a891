package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/subsight/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDialectSupportsKnownTypes(t *testing.T) {
	for _, typ := range []string{TypePostgres, TypeMySQL, TypeSQLite} {
		dialect, err := Dialect(Config{Type: typ})
		require.NoError(t, err, typ)
		assert.NotNil(t, dialect)
	}

	_, err := Dialect(Config{Type: "oracle"})
	assert.Error(t, err)
}

func TestNewConfigConvertsSeconds(t *testing.T) {
	cfg := NewConfig(config.Config{DBType: TypeSQLite, DBConnMaxLifetime: 30, Environment: "production"})

	assert.Equal(t, TypeSQLite, cfg.Type)
	assert.Equal(t, float64(30), cfg.ConnMaxLifetime.Seconds())
	assert.False(t, cfg.Debug)
}

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("copy: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: users.user_id")))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}

func TestNewTestIsUsable(t *testing.T) {
	conn, err := NewTest()
	require.NoError(t, err)

	type probe struct {
		ID   int64 `gorm:"primaryKey"`
		Name string
	}
	require.NoError(t, conn.AutoMigrate(&probe{}))
	require.NoError(t, conn.Create(&probe{ID: 1, Name: "a"}).Error)

	err = conn.Create(&probe{ID: 1, Name: "b"}).Error
	assert.True(t, IsDuplicateKeyErr(err))
}
