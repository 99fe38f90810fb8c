package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kudoai/billing_go_server/internal/testutil"
)

func TestUserRepository_Ensure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	user, err := repo.Ensure(424242, "ivan", "ru")
	require.NoError(t, err)
	assert.Equal(t, int64(424242), user.ID)
	assert.Equal(t, "free", user.Plan)

	// 再次调用返回现有记录，不覆盖
	require.NoError(t, repo.UpdatePlan(424242, "standard"))
	again, err := repo.Ensure(424242, "other_name", "en")
	require.NoError(t, err)
	assert.Equal(t, "ivan", again.Username)
	assert.Equal(t, "standard", again.Plan)
}

func TestUserRepository_UpdateBalances(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db, testutil.WithCoins(10, 20))

	require.NoError(t, repo.UpdateBalances(user.ID, 100, 50))

	fresh, err := repo.GetByID(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, fresh.SubscriptionCoins)
	assert.Equal(t, 50, fresh.PermanentCoins)
	// 冗余字段同步更新
	assert.Equal(t, 150, fresh.Balance)
}

func TestUserRepository_GetByID_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)

	_, err := repo.GetByID(99999999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_Blocking(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewUserRepository(db)
	user := testutil.TestUser(t, db)

	blocked, err := repo.IsBlocked(user.ID)
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, repo.SetBlocked(user.ID, true))
	blocked, err = repo.IsBlocked(user.ID)
	require.NoError(t, err)
	assert.True(t, blocked)
}
