package stores

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	pe "vanish.io/linkcore/errors"
	md "vanish.io/linkcore/models"
)

// LinkStore vends the interface to durable link records.
type LinkStore interface {
	// Insert persists a new record. It fails with a Conflict error if the id is
	// already taken - ids are drawn from a space large enough that collisions are
	// negligible, but the store still defends against them.
	Insert(ctx context.Context, l *md.Link) *pe.Err
	Get(ctx context.Context, id string) (*md.Link, *pe.Err)
	// IncrementViews bumps the record's view count and enforces the quota in the
	// same atomic step, returning the post-increment count. A Gone error means the
	// increment would have pushed the count past maxViews and nothing changed.
	// maxViews == 0 means unlimited.
	IncrementViews(ctx context.Context, id string, maxViews int64) (int64, *pe.Err)
	// Delete removes the record. Delete must be idempotent.
	Delete(ctx context.Context, id string) *pe.Err
	// ListExpired returns ids of records whose deadline has passed, up to max;
	// max <= 0 means no bound.
	ListExpired(ctx context.Context, now time.Time, max int) ([]string, *pe.Err)
	Close() *pe.Err
}

//go:embed schema.sql
var schemaSQL string

// pgcode of unique_violation, see https://www.postgresql.org/docs/current/errcodes-appendix.html
const pgCodeUniqueViolation = "23505"

// PostgresLinkStore implements LinkStore with PostgreSQL.
type PostgresLinkStore struct {
	pool        *pgxpool.Pool
	callTimeout time.Duration
}

type PostgresConfig struct {
	Pool *pgxpool.Pool
	// CallTimeout bounds every store call so a wedged database surfaces as a
	// ServiceFailure instead of a hung request.
	CallTimeout time.Duration
}

func NewPostgresLinkStore(cfg *PostgresConfig) *PostgresLinkStore {
	to := cfg.CallTimeout
	if to <= 0 {
		to = 3 * time.Second
	}
	return &PostgresLinkStore{pool: cfg.Pool, callTimeout: to}
}

// Migrate applies the links schema. It is safe to run at every boot.
func (s *PostgresLinkStore) Migrate(ctx context.Context) *pe.Err {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		log.WithError(err).Error("Migrate: error applying links schema")
		return pe.NewServiceFailure("error applying links schema").WithCause(err)
	}
	return nil
}

func (s *PostgresLinkStore) Insert(ctx context.Context, l *md.Link) *pe.Err {
	clog := log.WithFields(log.Fields{"linkID": l.ID, "linkExpiry": l.ExpiresAt})
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
INSERT INTO links (id, content, content_type, created_at, expires_at, max_views, current_views,
                   is_encrypted, is_one_time, download_only, password_hash, file_name, file_size, mime_type)
VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10, $11, $12, $13)`,
		l.ID, l.Content, string(l.Type), l.CreatedAt, l.ExpiresAt, l.MaxViews,
		l.IsEncrypted, l.IsOneTime, l.DownloadOnly, l.PasswordHash, l.FileName, l.FileSize, l.MimeType,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCodeUniqueViolation {
			clog.WithError(err).Error("Insert: link id collision")
			return pe.NewConflict("link id already taken").WithCause(err)
		}
		clog.WithError(err).Error("Insert: error saving link")
		return pe.NewServiceFailure("error saving link").WithCause(err)
	}
	return nil
}

func (s *PostgresLinkStore) Get(ctx context.Context, id string) (*md.Link, *pe.Err) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	l := &md.Link{}
	var contentType string
	err := s.pool.QueryRow(ctx, `
SELECT id, content, content_type, created_at, expires_at, max_views, current_views,
       is_encrypted, is_one_time, download_only, password_hash, file_name, file_size, mime_type
FROM links WHERE id = $1`, id,
	).Scan(&l.ID, &l.Content, &contentType, &l.CreatedAt, &l.ExpiresAt, &l.MaxViews, &l.CurrentViews,
		&l.IsEncrypted, &l.IsOneTime, &l.DownloadOnly, &l.PasswordHash, &l.FileName, &l.FileSize, &l.MimeType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, pe.NewNotFound("link not found")
	}
	if err != nil {
		log.WithField("linkID", id).WithError(err).Error("Get: error loading link")
		return nil, pe.NewServiceFailure("error loading link").WithCause(err)
	}
	l.Type = md.ContentType(contentType)
	return l, nil
}

// IncrementViews relies on a single conditional UPDATE so that the bounds check and
// the increment are one indivisible operation. A separate read-then-write would let
// two concurrent readers both pass the check and overshoot the quota.
func (s *PostgresLinkStore) IncrementViews(ctx context.Context, id string, maxViews int64) (int64, *pe.Err) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	var count int64
	err := s.pool.QueryRow(ctx, `
UPDATE links SET current_views = current_views + 1
WHERE id = $1 AND (max_views = 0 OR current_views < max_views)
RETURNING current_views`, id,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		// the caller has already established existence, so a missed predicate means
		// the quota is spent (or a janitor removed the row, which reads the same)
		return 0, pe.NewGone("view limit exceeded")
	}
	if err != nil {
		log.WithField("linkID", id).WithError(err).Error("IncrementViews: error updating view count")
		return 0, pe.NewServiceFailure("error updating view count").WithCause(err)
	}
	return count, nil
}

func (s *PostgresLinkStore) Delete(ctx context.Context, id string) *pe.Err {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	// deleting an already-absent row is a no-op, keeping Delete idempotent
	if _, err := s.pool.Exec(ctx, `DELETE FROM links WHERE id = $1`, id); err != nil {
		log.WithField("linkID", id).WithError(err).Error("Delete: error removing link")
		return pe.NewServiceFailure("error removing link").WithCause(err)
	}
	return nil
}

func (s *PostgresLinkStore) ListExpired(ctx context.Context, now time.Time, max int) ([]string, *pe.Err) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	q, args := `SELECT id FROM links WHERE expires_at <= $1`, []interface{}{now}
	if max > 0 {
		q += ` LIMIT $2`
		args = append(args, max)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		log.WithError(err).Error("ListExpired: error loading expired link ids")
		return nil, pe.NewServiceFailure("error loading expired link ids").WithCause(err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, pe.NewServiceFailure("error scanning expired link id").WithCause(err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, pe.NewServiceFailure("error iterating expired link ids").WithCause(err)
	}
	return ids, nil
}

func (s *PostgresLinkStore) Close() *pe.Err {
	s.pool.Close()
	return nil
}
