package postgres

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/aevon-lab/reprocessor/internal/core/storage"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestEventAdapter_InsertEvent(t *testing.T) {
	now := time.Date(2026, 2, 8, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		event      *v1.Event
		mockResult func(mock sqlmock.Sqlmock, event *v1.Event)
		assertions func(t *testing.T, event *v1.Event, err error)
	}{
		{
			name: "success sets ingest seq",
			event: &v1.Event{
				ProjectID:   1,
				EventID:     "a1b2c3",
				GroupID:     100,
				PrimaryHash: "hash-a",
				OccurredAt:  now,
				Data:        v1.Payload{"message": "boom"},
			},
			mockResult: func(mock sqlmock.Sqlmock, event *v1.Event) {
				mock.ExpectQuery(regexp.QuoteMeta(querySaveEvent)).
					WithArgs(
						event.ProjectID,
						event.EventID,
						event.PrimaryHash,
						event.GroupID,
						false,
						event.OccurredAt,
						sqlmock.AnyArg(),
					).
					WillReturnRows(sqlmock.NewRows([]string{"ingest_seq"}).AddRow(int64(42)))
			},
			assertions: func(t *testing.T, event *v1.Event, err error) {
				require.NoError(t, err)
				require.Equal(t, int64(42), event.IngestSeq)
			},
		},
		{
			name:  "invalid event is rejected before the query",
			event: &v1.Event{ProjectID: 1, EventID: "a1b2c3"},
			assertions: func(t *testing.T, event *v1.Event, err error) {
				require.ErrorContains(t, err, "invalid event")
			},
		},
		{
			name: "marshal error short-circuits",
			event: &v1.Event{
				ProjectID:   1,
				EventID:     "bad",
				PrimaryHash: "hash-a",
				OccurredAt:  now,
				Data:        v1.Payload{"value": math.NaN()},
			},
			assertions: func(t *testing.T, event *v1.Event, err error) {
				require.ErrorContains(t, err, "failed to marshal data")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockEventAdapter(t)
			defer db.Close()

			if tc.mockResult != nil {
				tc.mockResult(mock, tc.event)
			}

			err := adapter.InsertEvent(context.Background(), tc.event)
			tc.assertions(t, tc.event, err)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEventAdapter_GetEvent(t *testing.T) {
	occurredAt := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		adapter, mock, db := newMockEventAdapter(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(queryGetEvent)).
			WithArgs(int64(1), "a1b2c3").
			WillReturnRows(sqlmock.NewRows(eventRowColumns()).
				AddRow(int64(1), "a1b2c3", "hash-a", int64(100), false, occurredAt,
					[]byte(`{"platform":"native","project":1}`), int64(7)))

		evt, err := adapter.GetEvent(context.Background(), 1, "a1b2c3")
		require.NoError(t, err)
		require.Equal(t, int64(100), evt.GroupID)
		require.Equal(t, "hash-a", evt.PrimaryHash)
		require.Equal(t, "native", evt.Data["platform"])
		require.Equal(t, int64(1), evt.Data.ProjectID())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing maps to ErrNotFound", func(t *testing.T) {
		adapter, mock, db := newMockEventAdapter(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(queryGetEvent)).
			WithArgs(int64(1), "gone").
			WillReturnRows(sqlmock.NewRows(eventRowColumns()))

		_, err := adapter.GetEvent(context.Background(), 1, "gone")
		require.ErrorIs(t, err, storage.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEventAdapter_CountAndListGroupEvents(t *testing.T) {
	adapter, mock, db := newMockEventAdapter(t)
	defer db.Close()

	occurredAt := time.Date(2026, 2, 8, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(queryCountGroupEvents)).
		WithArgs(int64(1), int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	mock.ExpectQuery(regexp.QuoteMeta(queryListGroupEvents)).
		WithArgs(int64(1), int64(100), int64(5), 2).
		WillReturnRows(sqlmock.NewRows(eventRowColumns()).
			AddRow(int64(1), "e1", "hash-a", int64(100), false, occurredAt, []byte(`{"n":1}`), int64(6)).
			AddRow(int64(1), "e2", "hash-a", int64(100), false, occurredAt, nil, int64(9)),
		).RowsWillBeClosed()

	count, err := adapter.CountGroupEvents(context.Background(), 1, 100)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)

	events, err := adapter.ListGroupEvents(context.Background(), 1, 100, 5, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "e1", events[0].EventID)
	require.Equal(t, int64(9), events[1].IngestSeq)
	require.Nil(t, events[1].Data)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventAdapter_Tombstone(t *testing.T) {
	tests := []struct {
		name       string
		req        storage.TombstoneRequest
		mockResult func(mock sqlmock.Sqlmock)
		wantErr    string
	}{
		{
			name: "explicit old hash",
			req:  storage.TombstoneRequest{ProjectID: 1, EventIDs: []string{"e1"}, OldPrimaryHash: "old"},
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(queryTombstoneHash)).
					WithArgs(int64(1), pq.Array([]string{"e1"}), "old").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "visible rows when no hash given",
			req:  storage.TombstoneRequest{ProjectID: 1, EventIDs: []string{"e1", "e2"}},
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(queryTombstoneVisible)).
					WithArgs(int64(1), pq.Array([]string{"e1", "e2"})).
					WillReturnResult(sqlmock.NewResult(0, 2))
			},
		},
		{
			name: "no event ids is a no-op",
			req:  storage.TombstoneRequest{ProjectID: 1, OldPrimaryHash: "old"},
		},
		{
			name: "exec error is wrapped",
			req:  storage.TombstoneRequest{ProjectID: 1, EventIDs: []string{"e1"}, OldPrimaryHash: "old"},
			mockResult: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(queryTombstoneHash)).
					WillReturnError(errors.New("connection reset"))
			},
			wantErr: "failed to tombstone events",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			adapter, mock, db := newMockEventAdapter(t)
			defer db.Close()

			if tc.mockResult != nil {
				tc.mockResult(mock)
			}

			err := adapter.Tombstone(context.Background(), tc.req)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestEventAdapter_ReassignEvents(t *testing.T) {
	adapter, mock, db := newMockEventAdapter(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(queryReassignEvents)).
		WithArgs(int64(1), pq.Array([]string{"e3"}), int64(200)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, adapter.ReassignEvents(context.Background(), 1, []string{"e3"}, 200))
	require.NoError(t, adapter.ReassignEvents(context.Background(), 1, nil, 200))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventAdapter_CloseReturnsStatementCloseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	closeErr := errors.New("stmt close failed")

	mock.ExpectPrepare(regexp.QuoteMeta(querySaveEvent)).WillBeClosed()
	mock.ExpectPrepare(regexp.QuoteMeta(queryGetEvent)).WillReturnCloseError(closeErr)
	mock.ExpectPrepare(regexp.QuoteMeta(queryCountGroupEvents)).WillBeClosed()
	mock.ExpectPrepare(regexp.QuoteMeta(queryListGroupEvents)).WillBeClosed()

	adapter, err := NewEventAdapter(db)
	require.NoError(t, err)

	err = adapter.Close()
	require.ErrorContains(t, err, "failed to close getEvent statement")
	require.ErrorIs(t, err, closeErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func newMockEventAdapter(t *testing.T) (*EventAdapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	adapter := &EventAdapter{
		db:                db,
		stmtSaveEvent:     mustPrepareStmt(t, db, mock, querySaveEvent),
		stmtGetEvent:      mustPrepareStmt(t, db, mock, queryGetEvent),
		stmtCountGroup:    mustPrepareStmt(t, db, mock, queryCountGroupEvents),
		stmtListGroupPage: mustPrepareStmt(t, db, mock, queryListGroupEvents),
	}

	return adapter, mock, db
}

func mustPrepareStmt(t *testing.T, db *sql.DB, mock sqlmock.Sqlmock, query string) *sql.Stmt {
	t.Helper()

	mock.ExpectPrepare(regexp.QuoteMeta(query))
	stmt, err := db.Prepare(query)
	require.NoError(t, err)

	return stmt
}

func eventRowColumns() []string {
	return []string{
		"project_id",
		"event_id",
		"primary_hash",
		"group_id",
		"deleted",
		"occurred_at",
		"data",
		"ingest_seq",
	}
}
