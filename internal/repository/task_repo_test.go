package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kudoai/billing_go_server/internal/model"
	"github.com/kudoai/billing_go_server/internal/testutil"
)

func TestTaskRepository_StatusTransitions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTaskRepository(db)
	user := testutil.TestUser(t, db)
	now := time.Now()

	task := testutil.TestTask(t, db, user.ID, model.TaskStatusRequested)

	claimed, err := repo.ClaimForDispatch(task.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	require.NoError(t, repo.MarkQueued(task.ID, "ext-42", now))
	queued, err := repo.GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusQueued, queued.Status)
	require.NotNil(t, queued.ProviderTaskID)
	assert.Equal(t, "ext-42", *queued.ProviderTaskID)
	assert.NotNil(t, queued.DispatchedAt)

	marked, err := repo.MarkSucceeded(task.ID, "https://cdn.example.com/v.mp4", now)
	require.NoError(t, err)
	assert.True(t, marked)
	done, err := repo.GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusSucceeded, done.Status)
	assert.Equal(t, "https://cdn.example.com/v.mp4", done.ResultURL)
	assert.NotNil(t, done.CompletedAt)
}

func TestTaskRepository_MarkFailedAndAbandoned(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTaskRepository(db)
	user := testutil.TestUser(t, db)
	now := time.Now()

	failed := testutil.TestTask(t, db, user.ID, model.TaskStatusQueued)
	marked, err := repo.MarkFailed(failed.ID, "provider rejected prompt", now)
	require.NoError(t, err)
	assert.True(t, marked)
	got, err := repo.GetByID(failed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusFailed, got.Status)
	assert.Equal(t, "provider rejected prompt", got.ErrorMessage)

	stale := testutil.TestTask(t, db, user.ID, model.TaskStatusQueued)
	marked, err = repo.MarkAbandoned(stale.ID, "task timed out", now)
	require.NoError(t, err)
	assert.True(t, marked)
	got, err = repo.GetByID(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusAbandoned, got.Status)
}

func TestTaskRepository_TerminalTransitionIsOneShot(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTaskRepository(db)
	user := testutil.TestUser(t, db)
	now := time.Now()

	task := testutil.TestTask(t, db, user.ID, model.TaskStatusQueued)

	marked, err := repo.MarkSucceeded(task.ID, "https://cdn.example.com/v.mp4", now)
	require.NoError(t, err)
	assert.True(t, marked)

	// 已终态的任务不再接受任何流转
	marked, err = repo.MarkFailed(task.ID, "late failure", now)
	require.NoError(t, err)
	assert.False(t, marked)
	marked, err = repo.MarkAbandoned(task.ID, "late timeout", now)
	require.NoError(t, err)
	assert.False(t, marked)

	got, err := repo.GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusSucceeded, got.Status)
	assert.Empty(t, got.ErrorMessage)
}

func TestTaskRepository_ClaimForDispatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTaskRepository(db)
	user := testutil.TestUser(t, db)

	task := testutil.TestTask(t, db, user.ID, model.TaskStatusRequested)

	claimed, err := repo.ClaimForDispatch(task.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	// 第二次认领必须失败
	claimed, err = repo.ClaimForDispatch(task.ID)
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err := repo.GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusDispatching, got.Status)
}

func TestTaskRepository_RequeueStale(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTaskRepository(db)
	user := testutil.TestUser(t, db)
	now := time.Now()

	task := testutil.TestTask(t, db, user.ID, model.TaskStatusDispatching)

	// 刚认领的任务不会被收回
	requeued, err := repo.RequeueStale(task.ID, now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.False(t, requeued)

	require.NoError(t, db.Model(&model.GenerationTask{}).
		Where("id = ?", task.ID).
		Update("updated_at", now.Add(-10*time.Minute)).Error)

	requeued, err = repo.RequeueStale(task.ID, now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.True(t, requeued)

	got, err := repo.GetByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusRequested, got.Status)
}

func TestTaskRepository_GetByProviderTaskID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTaskRepository(db)
	user := testutil.TestUser(t, db)

	task := testutil.TestTask(t, db, user.ID, model.TaskStatusQueued,
		testutil.WithProviderTaskID("ext-77"))

	found, err := repo.GetByProviderTaskID("ext-77")
	require.NoError(t, err)
	assert.Equal(t, task.ID, found.ID)
}

func TestTaskRepository_ListQueued(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTaskRepository(db)
	user := testutil.TestUser(t, db)
	now := time.Now()

	// 按分发时间升序轮询
	second := testutil.TestTask(t, db, user.ID, model.TaskStatusQueued,
		testutil.WithDispatchedAt(now.Add(-time.Minute)))
	first := testutil.TestTask(t, db, user.ID, model.TaskStatusQueued,
		testutil.WithDispatchedAt(now.Add(-2*time.Minute)))
	testutil.TestTask(t, db, user.ID, model.TaskStatusSucceeded)

	tasks, err := repo.ListQueued(10)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, first.ID, tasks[0].ID)
	assert.Equal(t, second.ID, tasks[1].ID)
}

func TestTaskRepository_ListStuckRequested(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTaskRepository(db)
	user := testutil.TestUser(t, db)
	now := time.Now()

	stuck := testutil.TestTask(t, db, user.ID, model.TaskStatusRequested)
	require.NoError(t, db.Model(&model.GenerationTask{}).
		Where("id = ?", stuck.ID).
		Update("created_at", now.Add(-10*time.Minute)).Error)
	// 刚落库的不算卡住
	testutil.TestTask(t, db, user.ID, model.TaskStatusRequested)

	tasks, err := repo.ListStuckRequested(now.Add(-5*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, stuck.ID, tasks[0].ID)
}

func TestTaskRepository_ListOverdue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTaskRepository(db)
	user := testutil.TestUser(t, db)
	now := time.Now()

	overdue := testutil.TestTask(t, db, user.ID, model.TaskStatusQueued,
		testutil.WithDispatchedAt(now.Add(-2*time.Hour)))
	testutil.TestTask(t, db, user.ID, model.TaskStatusQueued,
		testutil.WithDispatchedAt(now.Add(-time.Minute)))

	tasks, err := repo.ListOverdue(now.Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, overdue.ID, tasks[0].ID)
}

func TestTaskRepository_ListByUserID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)

	repo := NewTaskRepository(db)
	user := testutil.TestUser(t, db)
	other := testutil.TestUser(t, db)

	testutil.TestTask(t, db, user.ID, model.TaskStatusSucceeded)
	testutil.TestTask(t, db, user.ID, model.TaskStatusFailed)
	testutil.TestTask(t, db, other.ID, model.TaskStatusSucceeded)

	tasks, err := repo.ListByUserID(user.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)

	tasks, err = repo.ListByUserID(user.ID, 1, 1)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}
