package txn

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type journalEntry struct {
	ID     int64 `gorm:"primaryKey;autoIncrement"`
	Amount int64
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&journalEntry{}))
	return db
}

func count(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&journalEntry{}).Count(&n).Error)
	return n
}

func TestExecuteCommitsOnSuccess(t *testing.T) {
	db := setupDB(t)
	c := New(db)

	err := c.Execute(context.Background(), func(ctx context.Context, tx *gorm.DB) error {
		return tx.Create(&journalEntry{Amount: 10}).Error
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count(t, db))
}

func TestExecuteRollsBackOnError(t *testing.T) {
	db := setupDB(t)
	c := New(db)

	boom := errors.New("boom")
	err := c.Execute(context.Background(), func(ctx context.Context, tx *gorm.DB) error {
		if err := tx.Create(&journalEntry{Amount: 10}).Error; err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), count(t, db))
}

// A nested Execute joins the outer transaction: a failure after the nested
// call rolls back everything the nested call wrote, and there is exactly one
// commit for the whole operation.
func TestNestedExecuteJoinsTransaction(t *testing.T) {
	db := setupDB(t)
	c := New(db)

	boom := errors.New("late failure")
	err := c.Execute(context.Background(), func(ctx context.Context, outer *gorm.DB) error {
		if err := outer.Create(&journalEntry{Amount: 1}).Error; err != nil {
			return err
		}

		if err := c.Execute(ctx, func(ctx context.Context, inner *gorm.DB) error {
			assert.Same(t, outer, inner, "nested call must see the same transaction")
			return inner.Create(&journalEntry{Amount: 2}).Error
		}); err != nil {
			return err
		}

		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), count(t, db), "nested writes must roll back with the outer transaction")
}

func TestNestedExecuteCommitsTogether(t *testing.T) {
	db := setupDB(t)
	c := New(db)

	err := c.Execute(context.Background(), func(ctx context.Context, outer *gorm.DB) error {
		if err := outer.Create(&journalEntry{Amount: 1}).Error; err != nil {
			return err
		}
		return c.Execute(ctx, func(ctx context.Context, inner *gorm.DB) error {
			return inner.Create(&journalEntry{Amount: 2}).Error
		})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), count(t, db))
}

func TestFromContextOutsideExecute(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
}
