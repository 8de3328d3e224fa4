package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/nutrivision/internal/db"
	"github.com/vbonduro/nutrivision/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestAnalysisStoreCreate(t *testing.T) {
	analyses := NewAnalysisStore(openTestDB(t))
	ctx := context.Background()

	created, err := analyses.Create(ctx, &domain.Analysis{
		AnalysisID:  "3f1c",
		Model:       "llava:13b",
		Temperature: 0.2,
		Instruction: "count calories",
		Outcome:     "success",
		ResultText:  "1) Salad — ~150\nTotal — ~150",
		DurationMS:  4200,
	})
	require.NoError(t, err)

	assert.NotZero(t, created.ID)
	assert.Equal(t, "3f1c", created.AnalysisID)
	assert.Equal(t, "llava:13b", created.Model)
	assert.InDelta(t, 0.2, created.Temperature, 1e-9)
	assert.Equal(t, "count calories", created.Instruction)
	assert.Equal(t, "success", created.Outcome)
	assert.Equal(t, "1) Salad — ~150\nTotal — ~150", created.ResultText)
	assert.Empty(t, created.ErrorMessage)
	assert.Equal(t, int64(4200), created.DurationMS)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestAnalysisStoreCreateDuplicateID(t *testing.T) {
	analyses := NewAnalysisStore(openTestDB(t))
	ctx := context.Background()

	a := &domain.Analysis{AnalysisID: "dup", Model: "llava:7b", Outcome: "empty"}
	_, err := analyses.Create(ctx, a)
	require.NoError(t, err)

	_, err = analyses.Create(ctx, a)
	assert.Error(t, err)
}

func TestAnalysisStoreGetByIDNotFound(t *testing.T) {
	analyses := NewAnalysisStore(openTestDB(t))

	a, err := analyses.GetByID(context.Background(), 99999)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestAnalysisStoreListRecent(t *testing.T) {
	analyses := NewAnalysisStore(openTestDB(t))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := analyses.Create(ctx, &domain.Analysis{
			AnalysisID: fmt.Sprintf("a%d", i),
			Model:      "moondream:latest",
			Outcome:    "timeout",
		})
		require.NoError(t, err)
	}

	recent, err := analyses.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// Rows created within the same second tie on created_at; id breaks the tie.
	assert.Equal(t, "a3", recent[0].AnalysisID)
	assert.Equal(t, "a2", recent[1].AnalysisID)
}

func TestAnalysisStoreListRecentEmpty(t *testing.T) {
	analyses := NewAnalysisStore(openTestDB(t))

	recent, err := analyses.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
