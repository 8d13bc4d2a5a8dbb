package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: agg_data_usage.att_subscription_id")))
	assert.False(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23503"}))
}

func TestIsSerializationFailure(t *testing.T) {
	assert.False(t, IsSerializationFailure(nil))
	assert.True(t, IsSerializationFailure(fmt.Errorf("populate: %w", &pgconn.PgError{Code: "40001"})))
	assert.True(t, IsSerializationFailure(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, IsSerializationFailure(errors.New("Error 1213: Deadlock found when trying to get lock")))
	assert.False(t, IsSerializationFailure(&pgconn.PgError{Code: "23514"}))
	assert.False(t, IsSerializationFailure(errors.New("boom")))
}
