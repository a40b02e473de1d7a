package messages

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/Alexander-D-Karpov/huddle/internal/infra"
	"github.com/Alexander-D-Karpov/huddle/internal/polls"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool      *pgxpool.Pool
	snowflake *infra.SnowflakeGenerator
}

func NewPostgresStore(pool *pgxpool.Pool, snowflake *infra.SnowflakeGenerator) *PostgresStore {
	return &PostgresStore{
		pool:      pool,
		snowflake: snowflake,
	}
}

const messageColumns = `id, author_id, author_display_name, body, kind, poll, voice_url, voice_duration,
	attachments, reply_to_id, reactions, created_at, edited_at, deleted_at, deleted_by, pinned_at, pinned_by`

type row struct {
	ID                int64
	AuthorID          uuid.UUID
	AuthorDisplayName string
	Body              string
	Kind              string
	Poll              []byte
	VoiceURL          *string
	VoiceDuration     *int32
	Attachments       []byte
	ReplyToID         *int64
	Reactions         []byte
	CreatedAt         time.Time
	EditedAt          *time.Time
	DeletedAt         *time.Time
	DeletedBy         *uuid.UUID
	PinnedAt          *time.Time
	PinnedBy          *uuid.UUID
}

func scanMessage(r pgx.Row) (*Message, error) {
	var rw row
	err := r.Scan(
		&rw.ID, &rw.AuthorID, &rw.AuthorDisplayName, &rw.Body, &rw.Kind,
		&rw.Poll, &rw.VoiceURL, &rw.VoiceDuration,
		&rw.Attachments, &rw.ReplyToID, &rw.Reactions,
		&rw.CreatedAt, &rw.EditedAt,
		&rw.DeletedAt, &rw.DeletedBy,
		&rw.PinnedAt, &rw.PinnedBy,
	)
	if err != nil {
		return nil, err
	}
	return rw.toMessage()
}

func (rw row) toMessage() (*Message, error) {
	msg := &Message{
		ID:                rw.ID,
		AuthorID:          rw.AuthorID,
		AuthorDisplayName: rw.AuthorDisplayName,
		Body:              rw.Body,
		ReplyToID:         rw.ReplyToID,
		CreatedAt:         rw.CreatedAt,
		EditedAt:          rw.EditedAt,
	}

	switch Kind(rw.Kind) {
	case KindPoll:
		var p polls.Poll
		if err := json.Unmarshal(rw.Poll, &p); err != nil {
			return nil, fmt.Errorf("decode poll of message %d: %w", rw.ID, err)
		}
		msg.Content = PollContent{Poll: p}
	case KindVoice:
		v := Voice{}
		if rw.VoiceURL != nil {
			v.AudioURL = *rw.VoiceURL
		}
		if rw.VoiceDuration != nil {
			v.DurationSeconds = int(*rw.VoiceDuration)
		}
		msg.Content = v
	default:
		msg.Content = Plain{}
	}

	if len(rw.Attachments) > 0 {
		if err := json.Unmarshal(rw.Attachments, &msg.Attachments); err != nil {
			return nil, fmt.Errorf("decode attachments of message %d: %w", rw.ID, err)
		}
	}
	if len(rw.Reactions) > 0 {
		if err := json.Unmarshal(rw.Reactions, &msg.Reactions); err != nil {
			return nil, fmt.Errorf("decode reactions of message %d: %w", rw.ID, err)
		}
	}
	if rw.DeletedAt != nil && rw.DeletedBy != nil {
		msg.Deletion = &Deletion{By: *rw.DeletedBy, At: *rw.DeletedAt}
	}
	if rw.PinnedAt != nil && rw.PinnedBy != nil {
		msg.Pin = &Pin{By: *rw.PinnedBy, At: *rw.PinnedAt}
	}
	return msg, nil
}

func encodeContent(msg *Message) (poll []byte, voiceURL *string, voiceDuration *int32, err error) {
	switch c := msg.Content.(type) {
	case PollContent:
		poll, err = json.Marshal(c.Poll)
	case Voice:
		url := c.AudioURL
		d := int32(c.DurationSeconds)
		voiceURL, voiceDuration = &url, &d
	}
	return poll, voiceURL, voiceDuration, err
}

func encodeList[T any](v []T) ([]byte, error) {
	if v == nil {
		v = []T{}
	}
	return json.Marshal(v)
}

func (s *PostgresStore) Create(ctx context.Context, msg *Message) error {
	if msg.ID == 0 {
		msg.ID = s.snowflake.Generate()
	}

	poll, voiceURL, voiceDuration, err := encodeContent(msg)
	if err != nil {
		return errors.Internal("encode message content", err)
	}
	attachments, err := encodeList(msg.Attachments)
	if err != nil {
		return errors.Internal("encode attachments", err)
	}
	reacts, err := encodeList(msg.Reactions)
	if err != nil {
		return errors.Internal("encode reactions", err)
	}

	// created_at comes from the database clock so instances with skewed clocks
	// still agree on ordering
	query := `
		INSERT INTO messages (id, author_id, author_display_name, body, kind, poll, voice_url, voice_duration,
			attachments, reply_to_id, reactions)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at
	`

	var createdAt time.Time
	err = s.pool.QueryRow(ctx, query,
		msg.ID,
		msg.AuthorID,
		msg.AuthorDisplayName,
		msg.Body,
		string(msg.Kind()),
		poll,
		voiceURL,
		voiceDuration,
		attachments,
		msg.ReplyToID,
		reacts,
	).Scan(&createdAt)
	if err != nil {
		return errors.StoreFailure("create message", err)
	}
	msg.CreatedAt = createdAt.UTC()
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	msg, err := scanMessage(s.pool.QueryRow(ctx, query, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("message not found")
	}
	if err != nil {
		return nil, errors.StoreFailure("get message", err)
	}
	return msg, nil
}

// Update locks the row, applies the patch with the same rules as every other
// store and writes all mutable columns back in one statement.
func (s *PostgresStore) Update(ctx context.Context, id int64, patch Patch) (*Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errors.StoreFailure("begin update", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	msg, err := scanMessage(tx.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1 FOR UPDATE`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("message not found")
	}
	if err != nil {
		return nil, errors.StoreFailure("load message", err)
	}

	if err := Apply(msg, patch); err != nil {
		return nil, err
	}

	poll, _, _, err := encodeContent(msg)
	if err != nil {
		return nil, errors.Internal("encode message content", err)
	}
	reacts, err := encodeList(msg.Reactions)
	if err != nil {
		return nil, errors.Internal("encode reactions", err)
	}

	var deletedAt, pinnedAt *time.Time
	var deletedBy, pinnedBy *uuid.UUID
	if msg.Deletion != nil {
		deletedAt, deletedBy = &msg.Deletion.At, &msg.Deletion.By
	}
	if msg.Pin != nil {
		pinnedAt, pinnedBy = &msg.Pin.At, &msg.Pin.By
	}

	_, err = tx.Exec(ctx, `
		UPDATE messages
		SET body = $2, edited_at = $3, deleted_at = $4, deleted_by = $5,
			pinned_at = $6, pinned_by = $7, poll = $8, reactions = $9
		WHERE id = $1
	`, msg.ID, msg.Body, msg.EditedAt, deletedAt, deletedBy, pinnedAt, pinnedBy, poll, reacts)
	if err != nil {
		return nil, errors.StoreFailure("update message", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.StoreFailure("commit update", err)
	}
	return msg, nil
}

func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE TRUE`
	var args []interface{}

	if !opts.IncludeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	if opts.PinnedOnly {
		query += ` AND pinned_at IS NOT NULL`
	}
	if opts.Order == OrderNewestFirst {
		query += ` ORDER BY created_at DESC, id DESC`
	} else {
		query += ` ORDER BY created_at ASC, id ASC`
	}
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.StoreFailure("list messages", err)
	}
	defer rows.Close()

	var out []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, errors.StoreFailure("scan message", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreFailure("list messages", err)
	}
	return out, nil
}

var _ Store = (*PostgresStore)(nil)
var _ Store = (*MemoryStore)(nil)
