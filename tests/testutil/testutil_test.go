package testutil

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMockDB(t *testing.T) {
	mockDB := NewMockDB(t)
	defer mockDB.Close()

	assert.NotNil(t, mockDB.DB)
	assert.NotNil(t, mockDB.Mock)
	assert.NotNil(t, mockDB.SqlDB)
}

func TestMockDB_PostgresPlaceholders(t *testing.T) {
	mockDB := NewMockDB(t)
	defer mockDB.Close()

	mockDB.Mock.ExpectQuery(`SELECT \* FROM "payment_journal" WHERE method_code = \$1`).
		WithArgs("TRANSFER").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	var rows []struct{ ID string }
	err := mockDB.DB.Table("payment_journal").
		Where("method_code = ?", "TRANSFER").
		Find(&rows).Error
	require.NoError(t, err)
	assert.Empty(t, rows)

	mockDB.ExpectationsWereMet(t)
}

func TestMockDB_ExpectationsWereMet(t *testing.T) {
	mockDB := NewMockDB(t)
	defer mockDB.Close()

	// No expectations registered, nothing can be unmet.
	mockDB.ExpectationsWereMet(t)
}
