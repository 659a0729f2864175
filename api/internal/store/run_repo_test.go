package store

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mathcanvas/api/internal/calc"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := Open(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunRepo_RecordAndFind(t *testing.T) {
	repo := NewRunRepo(openTestDB(t))
	ctx := context.Background()

	run := calc.Run{
		ID:          uuid.NewString(),
		ImageSHA256: "abc",
		Engine:      "gemini",
		Model:       "gemini-2.5-flash",
		VarCount:    2,
		Status:      "ok",
		Records:     1,
		Degraded:    false,
		Latency:     1500 * time.Millisecond,
	}
	require.NoError(t, repo.RecordRun(ctx, run))
	require.NoError(t, repo.RecordRun(ctx, run), "duplicate ids are ignored")

	got, err := repo.FindByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run, got.Run)
	assert.WithinDuration(t, time.Now(), got.CreatedAt, time.Minute)

	_, err = repo.FindByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRunRepo_DegradedRate(t *testing.T) {
	repo := NewRunRepo(openTestDB(t))
	ctx := context.Background()
	since := time.Now().Add(-time.Second)

	for _, degraded := range []bool{true, false, false, true} {
		require.NoError(t, repo.RecordRun(ctx, calc.Run{
			ID: uuid.NewString(), Engine: "fake", Model: "m", Status: "ok", Degraded: degraded,
		}))
	}
	rate, err := repo.DegradedRate(ctx, since)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, rate, 0.25)
}

func TestRunRepo_PurgeRejectsZero(t *testing.T) {
	_, err := (&RunRepo{}).PurgeOlderThan(context.Background(), 0)
	assert.Error(t, err)
}

func TestSafeDSNSummary(t *testing.T) {
	assert.Equal(t, "host=db port=5432 db=mathcanvas user=calc",
		SafeDSNSummary("postgres://calc:secret@db:5432/mathcanvas?sslmode=disable"))
	assert.Equal(t, "host=db db=mathcanvas user=calc",
		SafeDSNSummary("postgres://calc:secret@db/mathcanvas"))
	assert.NotContains(t, SafeDSNSummary("postgres://calc:secret@db/x"), "secret")
}
