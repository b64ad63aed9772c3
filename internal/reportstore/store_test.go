package reportstore

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/awolfden/workos-bulk-user-import-tool-multi-org-sub001/internal/checkpoint"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Store{db: db}, mock
}

func TestUpsertRun(t *testing.T) {
	store, mock := newMockStore(t)

	state := checkpoint.State{
		JobID:   "job-1",
		CSVPath: "in.csv",
		CSVHash: "abc123",
		Mode:    checkpoint.ModeMultiOrg,
		Status:  checkpoint.JobCompleted,
		Summary: checkpoint.Summary{
			Total:     10,
			Successes: 9,
			Failures:  1,
			StartedAt: time.Now().UTC(),
		},
	}

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(state.JobID, state.CSVPath, state.CSVHash, string(state.Mode), string(state.Status),
			state.Summary.Total, state.Summary.Successes, state.Summary.Failures,
			state.Summary.StartedAt, state.Summary.EndedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpsertRun(context.Background(), state))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecentRuns(t *testing.T) {
	store, mock := newMockStore(t)

	started := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"job_id", "mode", "status", "total", "successes", "failures", "started_at", "ended_at"}).
		AddRow("job-1", "multi-org", "completed", 10, 9, 1, started, nil)

	mock.ExpectQuery("SELECT job_id, mode, status").WithArgs(20).WillReturnRows(rows)

	runs, err := store.RecentRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, "job-1", runs[0].JobID)
	require.NoError(t, mock.ExpectationsWereMet())
}
