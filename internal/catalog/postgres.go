package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Verified-File-Delivery-Platform/pkg/postgres"
)

// PostgresStore implements Store on top of PostgreSQL.
type PostgresStore struct {
	db     *postgres.Client
	logger *slog.Logger
}

// NewPostgresStore creates a PostgresStore and ensures its schema exists.
func NewPostgresStore(ctx context.Context, db *postgres.Client) (*PostgresStore, error) {
	s := &PostgresStore{
		db:     db,
		logger: slog.Default().With("component", "catalog-postgres"),
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS entries (
			id           BIGSERIAL PRIMARY KEY,
			title        TEXT NOT NULL,
			year         INT,
			quality      TEXT NOT NULL DEFAULT 'HD',
			part         TEXT NOT NULL DEFAULT 'Complete',
			file_ref     TEXT NOT NULL,
			file_name    TEXT NOT NULL,
			file_size    BIGINT NOT NULL DEFAULT 0,
			original_url TEXT NOT NULL DEFAULT '',
			short_url    TEXT NOT NULL DEFAULT '',
			uploaded_by  BIGINT NOT NULL,
			uploaded_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			use_count    BIGINT NOT NULL DEFAULT 0,
			last_access  TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_title ON entries (lower(title))`,
		`CREATE TABLE IF NOT EXISTS delivery_logs (
			id           BIGSERIAL PRIMARY KEY,
			subject_id   BIGINT NOT NULL,
			resource_id  BIGINT NOT NULL REFERENCES entries (id),
			delivered_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			cleanup_at   TIMESTAMPTZ NOT NULL,
			fired        BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_delivery_logs_cleanup ON delivery_logs (cleanup_at) WHERE NOT fired`,
		`CREATE TABLE IF NOT EXISTS search_logs (
			id          BIGSERIAL PRIMARY KEY,
			subject_id  BIGINT NOT NULL,
			query       TEXT NOT NULL,
			results     INT NOT NULL DEFAULT 0,
			searched_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating catalog schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateEntry(ctx context.Context, e *Entry) (int64, error) {
	if e.UploadedAt.IsZero() {
		e.UploadedAt = time.Now().UTC()
	}
	var id int64
	err := s.db.DB.QueryRowContext(ctx, `
		INSERT INTO entries
			(title, year, quality, part, file_ref, file_name, file_size,
			 original_url, short_url, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		e.Title, nullableInt(e.Year), e.Quality, e.Part, e.FileRef, e.FileName,
		e.FileSize, e.OriginalURL, e.ShortURL, e.UploadedBy, e.UploadedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting catalog entry: %w", err)
	}
	e.ID = id
	return id, nil
}

func (s *PostgresStore) GetEntry(ctx context.Context, id int64) (*Entry, error) {
	var (
		e    Entry
		year sql.NullInt64
		la   sql.NullTime
	)
	err := s.db.DB.QueryRowContext(ctx, `
		SELECT id, title, year, quality, part, file_ref, file_name, file_size,
		       original_url, short_url, uploaded_by, uploaded_at, use_count, last_access
		FROM entries WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &year, &e.Quality, &e.Part, &e.FileRef, &e.FileName,
		&e.FileSize, &e.OriginalURL, &e.ShortURL, &e.UploadedBy, &e.UploadedAt,
		&e.UseCount, &la)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, 404, "entry %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching catalog entry %d: %w", id, err)
	}
	if year.Valid {
		e.Year = int(year.Int64)
	}
	if la.Valid {
		e.LastAccess = &la.Time
	}
	return &e, nil
}

func (s *PostgresStore) IncrementUseCount(ctx context.Context, id int64) error {
	res, err := s.db.DB.ExecContext(ctx, `
		UPDATE entries
		SET use_count = use_count + 1, last_access = now()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("incrementing use count for entry %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Newf(apperrors.ErrNotFound, 404, "entry %d", id)
	}
	return nil
}

// likeEscaper neutralizes LIKE metacharacters so user queries match
// literally, the same way the in-memory store's substring match does.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *PostgresStore) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT id, title, year, quality, part, file_ref, file_name, file_size,
		       original_url, short_url, uploaded_by, uploaded_at, use_count, last_access
		FROM entries
		WHERE lower(title) LIKE '%' || lower($1) || '%' ESCAPE '\'
		ORDER BY use_count DESC, uploaded_at DESC
		LIMIT $2`, likeEscaper.Replace(query), limit)
	if err != nil {
		return nil, fmt.Errorf("searching catalog for %q: %w", query, err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			year sql.NullInt64
			la   sql.NullTime
		)
		if err := rows.Scan(&e.ID, &e.Title, &year, &e.Quality, &e.Part, &e.FileRef,
			&e.FileName, &e.FileSize, &e.OriginalURL, &e.ShortURL, &e.UploadedBy,
			&e.UploadedAt, &e.UseCount, &la); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		if year.Valid {
			e.Year = int(year.Int64)
		}
		if la.Valid {
			e.LastAccess = &la.Time
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) LogDelivery(ctx context.Context, rec *DeliveryRecord) (int64, error) {
	if rec.DeliveredAt.IsZero() {
		rec.DeliveredAt = time.Now().UTC()
	}
	var id int64
	err := s.db.DB.QueryRowContext(ctx, `
		INSERT INTO delivery_logs (subject_id, resource_id, delivered_at, cleanup_at, fired)
		VALUES ($1, $2, $3, $4, FALSE)
		RETURNING id`,
		rec.SubjectID, rec.ResourceID, rec.DeliveredAt, rec.CleanupAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting delivery log: %w", err)
	}
	rec.ID = id
	return id, nil
}

func (s *PostgresStore) MarkCleanupFired(ctx context.Context, id int64) error {
	if _, err := s.db.DB.ExecContext(ctx,
		`UPDATE delivery_logs SET fired = TRUE WHERE id = $1`, id); err != nil {
		return fmt.Errorf("marking cleanup %d fired: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) PendingCleanups(ctx context.Context) ([]DeliveryRecord, error) {
	rows, err := s.db.DB.QueryContext(ctx, `
		SELECT id, subject_id, resource_id, delivered_at, cleanup_at, fired
		FROM delivery_logs
		WHERE NOT fired
		ORDER BY cleanup_at`)
	if err != nil {
		return nil, fmt.Errorf("fetching pending cleanups: %w", err)
	}
	defer rows.Close()

	var out []DeliveryRecord
	for rows.Next() {
		var rec DeliveryRecord
		if err := rows.Scan(&rec.ID, &rec.SubjectID, &rec.ResourceID,
			&rec.DeliveredAt, &rec.CleanupAt, &rec.Fired); err != nil {
			return nil, fmt.Errorf("scanning delivery log row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LogSearch appends one search to the search log. Failures are logged and
// swallowed; a lost log line never fails a user search.
func (s *PostgresStore) LogSearch(ctx context.Context, subjectID int64, query string, results int) {
	if _, err := s.db.DB.ExecContext(ctx, `
		INSERT INTO search_logs (subject_id, query, results)
		VALUES ($1, $2, $3)`, subjectID, query, results); err != nil {
		s.logger.Warn("search log write failed", "error", err)
	}
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
