package postgres

// SQL for the append-only event store. Every read resolves duplicates the way
// the columnar store does on merge: newest row per (project_id, event_id,
// primary_hash) wins, and a winning tombstone hides the key.

const (
	// querySaveEvent appends one row. RETURNING ingest_seq for cursor tracking.
	querySaveEvent = `
		INSERT INTO events (
			project_id, event_id, primary_hash, group_id,
			deleted, occurred_at, data
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ingest_seq
	`

	// queryGetEvent returns the newest visible row of one event across hashes.
	queryGetEvent = `
		SELECT
			project_id, event_id, primary_hash, group_id,
			deleted, occurred_at, data, ingest_seq
		FROM (
			SELECT DISTINCT ON (primary_hash)
				project_id, event_id, primary_hash, group_id,
				deleted, occurred_at, data, ingest_seq
			FROM events
			WHERE project_id = $1 AND event_id = $2
			ORDER BY primary_hash, ingest_seq DESC
		) latest
		WHERE NOT deleted
		ORDER BY ingest_seq DESC
		LIMIT 1
	`

	queryCountGroupEvents = `
		SELECT COUNT(*)
		FROM (
			SELECT DISTINCT ON (event_id, primary_hash)
				group_id, deleted
			FROM events
			WHERE project_id = $1
			ORDER BY event_id, primary_hash, ingest_seq DESC
		) latest
		WHERE group_id = $2 AND NOT deleted
	`

	// queryListGroupEvents pages visible rows of a group by ingest_seq cursor.
	queryListGroupEvents = `
		SELECT
			project_id, event_id, primary_hash, group_id,
			deleted, occurred_at, data, ingest_seq
		FROM (
			SELECT DISTINCT ON (event_id, primary_hash)
				project_id, event_id, primary_hash, group_id,
				deleted, occurred_at, data, ingest_seq
			FROM events
			WHERE project_id = $1
			ORDER BY event_id, primary_hash, ingest_seq DESC
		) latest
		WHERE group_id = $2 AND NOT deleted AND ingest_seq > $3
		ORDER BY ingest_seq ASC
		LIMIT $4
	`

	// queryTombstoneHash hides the rows of the given events under one explicit
	// (old) primary hash.
	queryTombstoneHash = `
		INSERT INTO events (
			project_id, event_id, primary_hash, group_id,
			deleted, occurred_at, data
		)
		SELECT $1, ids.event_id, $3, 0, TRUE, NOW(), NULL
		FROM UNNEST($2::text[]) AS ids(event_id)
	`

	// queryTombstoneVisible hides whatever row of each event is visible now.
	queryTombstoneVisible = `
		INSERT INTO events (
			project_id, event_id, primary_hash, group_id,
			deleted, occurred_at, data
		)
		SELECT project_id, event_id, primary_hash, group_id, TRUE, occurred_at, NULL
		FROM (
			SELECT DISTINCT ON (event_id, primary_hash)
				project_id, event_id, primary_hash, group_id, deleted, occurred_at
			FROM events
			WHERE project_id = $1 AND event_id = ANY($2::text[])
			ORDER BY event_id, primary_hash, ingest_seq DESC
		) latest
		WHERE NOT deleted
	`

	// queryReassignEvents appends a copy of each visible row under a new group.
	queryReassignEvents = `
		INSERT INTO events (
			project_id, event_id, primary_hash, group_id,
			deleted, occurred_at, data
		)
		SELECT project_id, event_id, primary_hash, $3, FALSE, occurred_at, data
		FROM (
			SELECT DISTINCT ON (event_id, primary_hash)
				project_id, event_id, primary_hash, deleted, occurred_at, data
			FROM events
			WHERE project_id = $1 AND event_id = ANY($2::text[])
			ORDER BY event_id, primary_hash, ingest_seq DESC
		) latest
		WHERE NOT deleted
	`
)

// Group store SQL.

const (
	groupColumns = `id, project_id, short_id, status, times_seen, message, culprit, level, first_seen, last_seen, data`

	queryGetGroup          = `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`
	queryGetGroupForUpdate = `SELECT ` + groupColumns + ` FROM groups WHERE id = $1 FOR UPDATE`

	queryListGroupsByStatus = `
		SELECT ` + groupColumns + `
		FROM groups
		WHERE status = $1
		ORDER BY id ASC
		LIMIT $2
	`

	queryUpdateGroup = `
		UPDATE groups
		SET status = $2, short_id = $3, times_seen = $4
		WHERE id = $1
	`

	queryInsertGroup = `
		INSERT INTO groups (` + groupColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	queryDeleteGroup      = `DELETE FROM groups WHERE id = $1`
	queryDeleteGroupInbox = `DELETE FROM group_inbox WHERE group_id = $1`

	activityColumns = `id, project_id, group_id, type, ident, user_id, data, created_at`

	queryInsertActivity = `
		INSERT INTO activities (` + activityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	queryListActivities = `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE group_id = $1
		ORDER BY created_at ASC, id ASC
	`

	queryFindActivity = `
		SELECT ` + activityColumns + `
		FROM activities
		WHERE group_id = $1 AND type = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	queryInsertRedirect = `
		INSERT INTO group_redirects (project_id, previous_group_id, group_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (previous_group_id) DO UPDATE SET group_id = EXCLUDED.group_id
	`

	queryGetRedirect = `SELECT group_id FROM group_redirects WHERE previous_group_id = $1`
)

// Archive and attachment SQL.

const (
	queryGetNode = `SELECT data FROM nodestore_node WHERE id = $1`

	queryUpsertNode = `
		INSERT INTO nodestore_node (id, data, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`

	queryListEventAttachments = `
		SELECT id, project_id, event_id, group_id, type, name, content_type, size, created_at
		FROM event_attachments
		WHERE project_id = $1 AND event_id = $2
		ORDER BY id ASC
	`

	queryReadBlobChunk = `
		SELECT data
		FROM attachment_blobs
		WHERE attachment_id = $1 AND chunk_index = $2
	`
)
