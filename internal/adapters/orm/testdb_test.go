package orm_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	_ "modernc.org/sqlite"

	"identityguard/internal/adapters/orm"
)

// testDSNInMemory is the SQLite DSN for an isolated in-memory database; no
// shared cache, so parallel tests never see each other's rows.
const testDSNInMemory = "file::memory:?cache=private"

// setupTestDB creates an in-memory SQLite database for testing (CGO-free,
// via modernc.org/sqlite).
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	ctx := context.Background()

	sqlDB, err := sql.Open("sqlite", testDSNInMemory)
	require.NoError(t, err)

	_, err = sqlDB.ExecContext(ctx, "PRAGMA journal_mode=WAL;")
	require.NoError(t, err)
	_, err = sqlDB.ExecContext(ctx, "PRAGMA busy_timeout = 30000;")
	require.NoError(t, err)

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	dialector := sqlite.Dialector{Conn: sqlDB}
	db, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	require.NoError(t, orm.AutoMigrate(db))
	return db
}
