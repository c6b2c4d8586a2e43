package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"protodash/internal/metrics"
	"protodash/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "protodash-test.db"))
	require.NoError(t, err, "Open failed")
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleDataset() metrics.Dataset {
	return metrics.Normalize([]metrics.RawRow{
		{Protocol: "1,001", User: "ana", Status: "FINALIZADO", AnalysisDuration: 90*time.Second + 250*time.Millisecond, ScheduledAt: "01/03/2024 10:00:00", Portfolio: "Varejo"},
		{Protocol: "1002", User: "bia", Status: "RECLASSIFICADO"},
		{Protocol: "1003", User: "ana", Status: "PENDENTE", AnalysisDuration: "0:00:00", ScheduledAt: "02/03/2024 23:59:59"},
	})
}

func TestInitDBSchema(t *testing.T) {
	s := newTestStore(t)

	rows, err := s.db.Query(`SELECT name FROM pragma_table_info('protocol_records') ORDER BY cid`)
	require.NoError(t, err)
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		cols = append(cols, name)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"id", "user_identity", "position", "protocol", "analyst", "status",
		"analysis_nanos", "scheduled_at", "portfolio", "saved_at"}, cols)
}

func TestInitDBIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(context.Background(), "team", sampleDataset()))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	ds, err := s.Load(context.Background(), "team")
	require.NoError(t, err)
	assert.Len(t, ds, 3)
	assert.Equal(t, "Varejo", ds[0].Portfolio)
}

func TestLoadMissingUserIsEmpty(t *testing.T) {
	s := newTestStore(t)

	ds, err := s.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, ds)
	assert.Empty(t, ds)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	want := sampleDataset()

	require.NoError(t, s.Save(ctx, "team", want))
	got, err := s.Load(ctx, "team")
	require.NoError(t, err)
	require.Len(t, got, len(want))

	for i := range want {
		assert.Equal(t, want[i].Protocol, got[i].Protocol)
		assert.Equal(t, want[i].User, got[i].User)
		assert.Equal(t, want[i].Status, got[i].Status)
		assert.Equal(t, want[i].Portfolio, got[i].Portfolio)
		assert.Equal(t, want[i].AnalysisDuration, got[i].AnalysisDuration)
		if want[i].ScheduledAt == nil {
			assert.Nil(t, got[i].ScheduledAt)
		} else {
			require.NotNil(t, got[i].ScheduledAt)
			assert.True(t, want[i].ScheduledAt.Equal(*got[i].ScheduledAt))
		}
	}
	// Zero duration survives and stays distinct from a missing one.
	require.NotNil(t, got[2].AnalysisDuration)
	assert.Zero(t, *got[2].AnalysisDuration)
	assert.Nil(t, got[1].AnalysisDuration)
}

func TestSaveOverwritesAndPartitionsByUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ds := sampleDataset()

	require.NoError(t, s.Save(ctx, "alice", ds))
	require.NoError(t, s.Save(ctx, "bob", ds[:1]))
	require.NoError(t, s.Save(ctx, "alice", ds[1:]))

	alice, err := s.Load(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, alice, 2)
	assert.Equal(t, "1002", alice[0].Protocol)

	bob, err := s.Load(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, bob, 1)
}

func TestClosedStoreReportsUnavailable(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Load(context.Background(), "team")
	assert.ErrorIs(t, err, storage.ErrUnavailable)

	err = s.Save(context.Background(), "team", sampleDataset())
	assert.ErrorIs(t, err, storage.ErrUnavailable)
}
