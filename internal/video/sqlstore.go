package video

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// sqlStore holds the queries shared by the SQLite and Postgres stores.
// Queries are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	db       *sql.DB
	numbered bool // $1, $2, ... placeholders
}

const recordColumns = `id, video_url, video_provider_id, thumbnail_url, thumbnail_provider_id,
	title, description, owner_id, owner_username, owner_full_name, owner_avatar,
	is_published, views, created_at, updated_at`

func (s *sqlStore) rebind(query string) string {
	if !s.numbered {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		r        Record
		thumbURL sql.NullString
		thumbID  sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.VideoURL, &r.VideoProviderID, &thumbURL, &thumbID,
		&r.Title, &r.Description, &r.Owner.ID, &r.Owner.Username, &r.Owner.FullName, &r.Owner.Avatar,
		&r.IsPublished, &r.Views, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if thumbURL.Valid {
		u := thumbURL.String
		r.ThumbnailURL = &u
	}
	r.ThumbnailProviderID = thumbID.String
	return &r, nil
}

func nullable(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func (s *sqlStore) Create(ctx context.Context, rec *Record) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO videos (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.VideoURL, rec.VideoProviderID, nullable(rec.ThumbnailURL), rec.ThumbnailProviderID,
		rec.Title, rec.Description, rec.Owner.ID, rec.Owner.Username, rec.Owner.FullName, rec.Owner.Avatar,
		rec.IsPublished, rec.Views, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert video: %w", err)
	}
	return rec.ID, nil
}

func (s *sqlStore) Read(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+recordColumns+` FROM videos WHERE id = ?`), id)
	r, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read video: %w", err)
	}
	return r, nil
}

// likePattern escapes LIKE wildcards in q and wraps it for substring search.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + strings.ToLower(r.Replace(q)) + "%"
}

func (s *sqlStore) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if filter.PublishedOnly {
		where = append(where, "is_published = ?")
		args = append(args, true)
	}
	if filter.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Query != "" {
		p := likePattern(filter.Query)
		if filter.TitleOnly {
			where = append(where, `LOWER(title) LIKE ? ESCAPE '\'`)
			args = append(args, p)
		} else {
			where = append(where, `(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\')`)
			args = append(args, p, p)
		}
	}

	query := `SELECT ` + recordColumns + ` FROM videos`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	var result []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}

func (s *sqlStore) Update(ctx context.Context, rec *Record) error {
	rec.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, s.rebind(`UPDATE videos
		SET title = ?, description = ?, is_published = ?, thumbnail_url = ?, thumbnail_provider_id = ?, updated_at = ?
		WHERE id = ?`),
		rec.Title, rec.Description, rec.IsPublished, nullable(rec.ThumbnailURL), rec.ThumbnailProviderID, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}
	return expectOneRow(res)
}

func (s *sqlStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM videos WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	return expectOneRow(res)
}

func (s *sqlStore) IncrementViews(ctx context.Context, id string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.rebind(`UPDATE videos SET views = views + 1 WHERE id = ?`), id)
	if err != nil {
		return 0, fmt.Errorf("failed to increment views: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return 0, err
	}

	var views int64
	if err := tx.QueryRowContext(ctx, s.rebind(`SELECT views FROM videos WHERE id = ?`), id).Scan(&views); err != nil {
		return 0, fmt.Errorf("failed to read views: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit views: %w", err)
	}
	return views, nil
}

func (s *sqlStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
