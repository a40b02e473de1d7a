package bans

import (
	"context"
	stderrors "errors"

	"github.com/Alexander-D-Karpov/huddle/internal/common/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const banColumns = `id, banned_user_id, banned_by_user_id, reason, is_active, expires_at, created_at`

func scanBan(row pgx.Row) (*Ban, error) {
	var b Ban
	err := row.Scan(&b.ID, &b.BannedUserID, &b.BannedByUserID, &b.Reason, &b.IsActive, &b.ExpiresAt, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) Create(ctx context.Context, b *Ban) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}

	query := `
		INSERT INTO bans (id, banned_user_id, banned_by_user_id, reason, is_active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	err := s.pool.QueryRow(ctx, query,
		b.ID,
		b.BannedUserID,
		b.BannedByUserID,
		b.Reason,
		b.IsActive,
		b.ExpiresAt,
	).Scan(&b.CreatedAt)
	if err != nil {
		return errors.StoreFailure("create ban", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Ban, error) {
	b, err := scanBan(s.pool.QueryRow(ctx, `SELECT `+banColumns+` FROM bans WHERE id = $1`, id))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("ban not found")
	}
	if err != nil {
		return nil, errors.StoreFailure("get ban", err)
	}
	return b, nil
}

func (s *PostgresStore) Update(ctx context.Context, id uuid.UUID, p Patch) (*Ban, error) {
	query := `
		UPDATE bans
		SET is_active = COALESCE($2, is_active)
		WHERE id = $1
		RETURNING ` + banColumns

	b, err := scanBan(s.pool.QueryRow(ctx, query, id, p.IsActive))
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("ban not found")
	}
	if err != nil {
		return nil, errors.StoreFailure("update ban", err)
	}
	return b, nil
}

func (s *PostgresStore) ListActive(ctx context.Context, f Filter) ([]Ban, error) {
	query := `SELECT ` + banColumns + ` FROM bans WHERE is_active`
	var args []interface{}
	if f.UserID != nil {
		args = append(args, *f.UserID)
		query += ` AND banned_user_id = $1`
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.StoreFailure("list bans", err)
	}
	defer rows.Close()

	out := make([]Ban, 0)
	for rows.Next() {
		b, err := scanBan(rows)
		if err != nil {
			return nil, errors.StoreFailure("scan ban", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StoreFailure("list bans", err)
	}
	return out, nil
}

var _ Store = (*PostgresStore)(nil)
