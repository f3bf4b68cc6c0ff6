package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestNewStorage_ClosesDatabaseOnMigrationError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// представление с именем таблицы задач не даёт AutoMigrate создать tasks
	require.NoError(t, db.Exec("CREATE VIEW tasks AS SELECT 1 AS id").Error)

	storage, err := newStorage(db)
	require.Error(t, err)
	assert.Nil(t, storage)
	assert.Contains(t, err.Error(), "миграция SQLite")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Error(t, sqlDB.Ping(), "соединение должно быть закрыто")
}

func TestNewStorage_KeepsDatabaseOpenOnSuccess(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "ok.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	storage, err := newStorage(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Ping())
}
