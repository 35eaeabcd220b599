// Package testutil backs the persistence tests with a sqlmock-driven
// GORM handle so journal SQL can be asserted without a live PostgreSQL.
package testutil

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// MockDB pairs a GORM handle with the sqlmock expectations behind it.
type MockDB struct {
	DB    *gorm.DB
	Mock  sqlmock.Sqlmock
	SqlDB *sql.DB
}

// NewMockDB opens a GORM connection over sqlmock using the PostgreSQL
// dialect, so expectations match the placeholders the repositories emit.
// The caller is responsible for Close.
func NewMockDB(t *testing.T) *MockDB {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err, "create sqlmock")

	dialector := postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	})

	// Repositories manage transactions explicitly; the implicit
	// per-statement transaction would break the mock expectations.
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err, "open GORM over sqlmock")

	return &MockDB{
		DB:    gormDB,
		Mock:  mock,
		SqlDB: sqlDB,
	}
}

// Close closes the underlying mock connection.
func (m *MockDB) Close() error {
	return m.SqlDB.Close()
}

// ExpectationsWereMet fails the test if any expected statement never ran.
func (m *MockDB) ExpectationsWereMet(t *testing.T) {
	t.Helper()
	require.NoError(t, m.Mock.ExpectationsWereMet(), "unmet database expectations")
}
