package postgres

import (
	"context"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
	"github.com/stretchr/testify/require"
)

func TestAttachmentAdapter_ListAndStream(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	created := time.Date(2026, 2, 8, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(queryListEventAttachments)).
		WithArgs(int64(1), "e1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "project_id", "event_id", "group_id", "type", "name", "content_type", "size", "created_at",
		}).AddRow(int64(7), int64(1), "e1", int64(100), v1.AttachmentTypeMinidump, "crash.dmp", "application/octet-stream", int64(6), created))

	mock.ExpectQuery(regexp.QuoteMeta(queryReadBlobChunk)).
		WithArgs(int64(7), 0).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte("abcd")))
	mock.ExpectQuery(regexp.QuoteMeta(queryReadBlobChunk)).
		WithArgs(int64(7), 1).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte("ef")))
	mock.ExpectQuery(regexp.QuoteMeta(queryReadBlobChunk)).
		WithArgs(int64(7), 2).
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	adapter := NewAttachmentAdapter(db)
	attachments, err := adapter.ListEventAttachments(context.Background(), 1, "e1")
	require.NoError(t, err)
	require.Len(t, attachments, 1)
	require.Equal(t, int64(100), *attachments[0].GroupID)
	require.Equal(t, v1.AttachmentTypeMinidump, attachments[0].Type)

	rc, err := adapter.OpenAttachment(context.Background(), attachments[0])
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "abcdef", string(data))
	require.NoError(t, mock.ExpectationsWereMet())
}
