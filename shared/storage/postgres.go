package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"video-analyzer/internal/models"
	"video-analyzer/shared/apperr"
	"video-analyzer/shared/config"
)

//go:embed schema.sql
var schemaSQL string

const resultColumns = `id, video_id, video_title, video_thumbnail, video_duration, channel_name,
	summary, key_topics, highlights, thumbnails, created_at`

// PostgresStore keeps analysis results in the analysis_results table.
type PostgresStore struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

func NewPostgresStore(ctx context.Context, cfg *config.StorageConfig, log *logrus.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, apperr.Storage("open", fmt.Errorf("parse database URL: %w", err))
	}
	if cfg.SimpleProtocol {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, apperr.Storage("open", err)
	}
	return NewPostgresStoreFromPool(pool, log), nil
}

// NewPostgresStoreFromPool wraps an existing pool. The store owns the pool
// and closes it on Close.
func NewPostgresStoreFromPool(pool *pgxpool.Pool, log *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: pool, log: log}
}

// Migrate creates the results table when it does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return apperr.Storage("migrate", err)
	}
	return nil
}

func (s *PostgresStore) Insert(ctx context.Context, result *models.AnalysisResult) (*models.AnalysisResult, error) {
	row, err := toRow(result)
	if err != nil {
		return nil, apperr.Storage("insert", err)
	}

	var createdAt time.Time
	err = s.db.QueryRow(ctx, `
		INSERT INTO analysis_results (id, video_id, video_title, video_thumbnail, video_duration,
			channel_name, summary, key_topics, highlights, thumbnails)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`,
		row.ID, row.VideoID, row.VideoTitle, row.VideoThumbnail, row.VideoDuration,
		row.ChannelName, row.Summary, string(row.KeyTopics), string(row.Highlights), string(row.Thumbnails),
	).Scan(&createdAt)
	if err != nil {
		s.log.WithError(err).WithField("result_id", row.ID).Error("Insert analysis result failed")
		return nil, apperr.Storage("insert", err)
	}

	stored := result.Clone()
	stored.CreatedAt = createdAt.UTC()
	return stored, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.AnalysisResult, error) {
	rows, err := s.db.Query(ctx, `SELECT `+resultColumns+`
		FROM analysis_results
		ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		return nil, apperr.Storage("list", err)
	}
	defer rows.Close()

	results := []*models.AnalysisResult{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, apperr.Storage("list", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Storage("list", err)
	}
	return results, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.AnalysisResult, bool, error) {
	r, err := scanResult(s.db.QueryRow(ctx, `SELECT `+resultColumns+`
		FROM analysis_results
		WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.Storage("get", err)
	}
	return r, true, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM analysis_results WHERE id = $1`, id)
	if err != nil {
		return false, apperr.Storage("delete", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return apperr.Storage("ping", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.db.Close()
}

func scanResult(row pgx.Row) (*models.AnalysisResult, error) {
	var (
		r         resultRow
		createdAt time.Time
	)
	if err := row.Scan(
		&r.ID, &r.VideoID, &r.VideoTitle, &r.VideoThumbnail, &r.VideoDuration, &r.ChannelName,
		&r.Summary, &r.KeyTopics, &r.Highlights, &r.Thumbnails, &createdAt,
	); err != nil {
		return nil, err
	}
	r.CreatedAt = &createdAt
	return r.toModel()
}
