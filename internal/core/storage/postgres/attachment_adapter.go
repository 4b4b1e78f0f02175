package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	v1 "github.com/aevon-lab/reprocessor/internal/api/v1"
)

// AttachmentAdapter implements storage.AttachmentStore. Attachment bytes are
// kept as ordered chunks in attachment_blobs and read one chunk at a time.
type AttachmentAdapter struct {
	db *sql.DB
}

func NewAttachmentAdapter(db *sql.DB) *AttachmentAdapter {
	return &AttachmentAdapter{db: db}
}

func (a *AttachmentAdapter) ListEventAttachments(ctx context.Context, projectID int64, eventID string) ([]*v1.EventAttachment, error) {
	rows, err := a.db.QueryContext(ctx, queryListEventAttachments, projectID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	var attachments []*v1.EventAttachment
	for rows.Next() {
		var att v1.EventAttachment
		var groupID sql.NullInt64
		if err := rows.Scan(
			&att.ID,
			&att.ProjectID,
			&att.EventID,
			&groupID,
			&att.Type,
			&att.Name,
			&att.ContentType,
			&att.Size,
			&att.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attachment row: %w", err)
		}
		if groupID.Valid {
			id := groupID.Int64
			att.GroupID = &id
		}
		attachments = append(attachments, &att)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attachments: %w", err)
	}
	return attachments, nil
}

// OpenAttachment returns a reader over the stored chunks of one attachment.
// The reader stops at the first missing chunk index.
func (a *AttachmentAdapter) OpenAttachment(ctx context.Context, attachment *v1.EventAttachment) (io.ReadCloser, error) {
	return &blobReader{ctx: ctx, db: a.db, attachmentID: attachment.ID}, nil
}

type blobReader struct {
	ctx          context.Context
	db           *sql.DB
	attachmentID int64
	next         int
	buf          []byte
	eof          bool
}

func (r *blobReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.eof {
			return 0, io.EOF
		}
		if err := r.fetch(); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *blobReader) fetch() error {
	var chunk []byte
	err := r.db.QueryRowContext(r.ctx, queryReadBlobChunk, r.attachmentID, r.next).Scan(&chunk)
	if errors.Is(err, sql.ErrNoRows) {
		r.eof = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read attachment %d chunk %d: %w", r.attachmentID, r.next, err)
	}
	r.next++
	r.buf = chunk
	return nil
}

func (r *blobReader) Close() error {
	r.buf = nil
	r.eof = true
	return nil
}
