package db

import (
	"errors"
	"fmt"
	"testing"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsDuplicateKeyErr(&mysqldriver.MySQLError{Number: 1062}))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: fee_types.name")))
	assert.False(t, IsDuplicateKeyErr(errors.New("boom")))
}

func TestIsRetryableErr(t *testing.T) {
	assert.False(t, IsRetryableErr(nil))
	assert.True(t, IsRetryableErr(fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"})))
	assert.True(t, IsRetryableErr(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsRetryableErr(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsRetryableErr(&mysqldriver.MySQLError{Number: 1213}))
	assert.True(t, IsRetryableErr(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, IsRetryableErr(errors.New("syntax error")))
}

func TestIsForeignKeyErr(t *testing.T) {
	assert.True(t, IsForeignKeyErr(gorm.ErrForeignKeyViolated))
	assert.True(t, IsForeignKeyErr(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsForeignKeyErr(errors.New("boom")))
}
