package repository

import (
	"testing"

	"github.com/nimasrn/credit-gateway/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Entities lists every table the ledger owns, for AutoMigrate in tests.
var Entities = []any{&UserEntity{}, &TransactionEntity{}}

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

// NewTestDB opens an in-memory SQLite database with the ledger schema.
// A single connection keeps every query on the same in-memory database.
func NewTestDB(t testing.TB) *pg.DB {
	return setupTestDB(t).DB
}

func setupTestDB(t testing.TB) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(Entities...)
	require.NoError(t, err)

	return &testDB{
		DB:    pg.NewWithGorm(db, db),
		rawDB: db,
	}
}
