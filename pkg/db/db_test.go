package db

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/mysteryart/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(Config{Type: "oracle"})
	require.Error(t, err)
}

func TestDialectNames(t *testing.T) {
	for _, typ := range []string{"postgres", "mysql", "sqlite", "sqlite3"} {
		d, err := Dialect(Config{Type: typ, Path: "x.db"})
		require.NoError(t, err, typ)
		assert.NotEmpty(t, d.Name(), typ)
	}
}

func TestConfigFromConvertsPoolDurations(t *testing.T) {
	cfg := ConfigFrom(config.Config{DBType: "sqlite", DBPath: "a.db", DBConnMaxLifetime: 300, DBConnMaxIdleTime: 60})
	assert.Equal(t, "sqlite", cfg.Type)
	assert.Equal(t, 5*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, time.Minute, cfg.ConnMaxIdleTime)
}

type row struct {
	ID  uint   `gorm:"primaryKey"`
	Key string `gorm:"uniqueIndex"`
}

func TestOpenSQLiteTranslatesDuplicateKey(t *testing.T) {
	conn, err := Open(Config{Type: "sqlite", Path: filepath.Join(t.TempDir(), "test.db"), MaxOpenConn: 1}, Options{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&row{}))

	require.NoError(t, conn.Create(&row{Key: "ord_1"}).Error)
	err = conn.Create(&row{Key: "ord_1"}).Error
	require.Error(t, err)
	assert.True(t, IsDuplicateKeyErr(err))
}

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "55P03"}))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062: Duplicate entry")))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}
