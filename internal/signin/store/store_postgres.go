package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"signinguard/internal/geo"
	"signinguard/internal/signin/models"
	"signinguard/pkg/platform/sentinel"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

const insertSignIn = `
INSERT INTO sign_ins (
    id, subject_id, sign_in_type, succeeded, created_at,
    latitude, longitude, ip_address, country_code, city, device
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

const listSignIns = `
SELECT id, subject_id, sign_in_type, succeeded, created_at,
       latitude, longitude, ip_address, country_code, city, device
FROM sign_ins
WHERE subject_id = $1
  AND ($2::text[] IS NULL OR sign_in_type = ANY($2::text[]))
  AND (NOT $3::boolean OR succeeded)
  AND ($4::timestamptz IS NULL OR created_at <= $4::timestamptz)
ORDER BY created_at DESC, id DESC
LIMIT $5 OFFSET $6`

// PostgresStore persists the sign-in log in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed sign-in store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the sign_ins table and index when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure sign-in schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, record *models.Record) error {
	if err := validate(record); err != nil {
		return err
	}
	var lat, lon sql.NullFloat64
	if record.Coordinates != nil {
		lat = sql.NullFloat64{Float64: record.Coordinates.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: record.Coordinates.Longitude, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, insertSignIn,
		record.ID,
		record.SubjectID,
		string(record.Type),
		record.Succeeded,
		record.CreatedAt.UTC(),
		lat,
		lon,
		record.IPAddress,
		record.CountryCode,
		record.City,
		record.Device,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("append %s: %w", record.ID, ErrDuplicate)
		}
		return fmt.Errorf("append sign-in: %w: %w", sentinel.ErrUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter models.ListFilter, page models.Page) (*models.ResultSet, error) {
	page = page.Normalize()

	var types []string
	for _, t := range filter.Types {
		types = append(types, string(t))
	}
	var before sql.NullTime
	if !filter.Before.IsZero() {
		before = sql.NullTime{Time: filter.Before.UTC(), Valid: true}
	}

	// One extra row tells us whether another page exists.
	rows, err := s.db.QueryContext(ctx, listSignIns,
		filter.SubjectID,
		pq.Array(types),
		filter.SucceededOnly,
		before,
		page.Size+1,
		page.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list sign-ins: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer rows.Close()

	records := make([]*models.Record, 0, page.Size+1)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sign-in: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sign-ins: %w", err)
	}

	rs := &models.ResultSet{Records: records}
	if len(records) > page.Size {
		rs.Records = records[:page.Size]
		rs.HasMore = true
	}
	return rs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		r         models.Record
		signType  string
		createdAt time.Time
		lat, lon  sql.NullFloat64
	)
	if err := row.Scan(
		&r.ID,
		&r.SubjectID,
		&signType,
		&r.Succeeded,
		&createdAt,
		&lat,
		&lon,
		&r.IPAddress,
		&r.CountryCode,
		&r.City,
		&r.Device,
	); err != nil {
		return nil, err
	}
	r.Type = models.SignInType(signType)
	r.CreatedAt = createdAt.UTC()
	if lat.Valid && lon.Valid {
		r.Coordinates = &geo.Point{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	return &r, nil
}
