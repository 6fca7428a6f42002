package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	postgrest "github.com/supabase-community/postgrest-go"

	"video-analyzer/internal/models"
	"video-analyzer/shared/apperr"
	"video-analyzer/shared/config"
)

// PostgRESTStore reaches the analysis_results table through a PostgREST
// endpoint such as Supabase's /rest/v1.
type PostgRESTStore struct {
	client *postgrest.Client
	log    *logrus.Logger
}

func NewPostgRESTStore(cfg *config.StorageConfig, log *logrus.Logger) (*PostgRESTStore, error) {
	baseURL := strings.TrimRight(cfg.PostgRESTURL, "/")
	if !strings.HasSuffix(baseURL, "/rest/v1") {
		baseURL += "/rest/v1"
	}

	client := postgrest.NewClient(baseURL, "", map[string]string{
		"apikey":        cfg.PostgRESTKey,
		"Authorization": fmt.Sprintf("Bearer %s", cfg.PostgRESTKey),
	})
	if client.ClientError != nil {
		return nil, apperr.Storage("open", client.ClientError)
	}

	log.WithField("url", baseURL).Info("PostgREST result store ready")
	return &PostgRESTStore{client: client, log: log}, nil
}

func (s *PostgRESTStore) Insert(ctx context.Context, result *models.AnalysisResult) (*models.AnalysisResult, error) {
	row, err := toRow(result)
	if err != nil {
		return nil, apperr.Storage("insert", err)
	}

	var inserted []resultRow
	err = await(ctx, "insert", func() error {
		_, err := s.client.From(resultsTable).Insert(row, false, "", "representation", "").ExecuteTo(&inserted)
		return err
	})
	if err != nil {
		s.log.WithError(err).WithField("result_id", row.ID).Error("Insert analysis result failed")
		return nil, err
	}
	if len(inserted) == 0 {
		return nil, apperr.Storage("insert", fmt.Errorf("no record returned after insert of %s", row.ID))
	}

	stored, err := inserted[0].toModel()
	if err != nil {
		return nil, apperr.Storage("insert", err)
	}
	return stored, nil
}

func (s *PostgRESTStore) List(ctx context.Context) ([]*models.AnalysisResult, error) {
	var rows []resultRow
	err := await(ctx, "list", func() error {
		_, err := s.client.From(resultsTable).
			Select("*", "", false).
			Order("created_at", &postgrest.OrderOpts{Ascending: false}).
			Order("seq", &postgrest.OrderOpts{Ascending: false}).
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, err
	}

	results := make([]*models.AnalysisResult, 0, len(rows))
	for i := range rows {
		r, err := rows[i].toModel()
		if err != nil {
			return nil, apperr.Storage("list", err)
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *PostgRESTStore) Get(ctx context.Context, id string) (*models.AnalysisResult, bool, error) {
	var rows []resultRow
	err := await(ctx, "get", func() error {
		_, err := s.client.From(resultsTable).Select("*", "", false).Eq("id", id).ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}

	r, err := rows[0].toModel()
	if err != nil {
		return nil, false, apperr.Storage("get", err)
	}
	return r, true, nil
}

func (s *PostgRESTStore) Delete(ctx context.Context, id string) (bool, error) {
	var deleted []resultRow
	err := await(ctx, "delete", func() error {
		_, err := s.client.From(resultsTable).Delete("representation", "").Eq("id", id).ExecuteTo(&deleted)
		return err
	})
	if err != nil {
		return false, err
	}
	return len(deleted) > 0, nil
}

func (s *PostgRESTStore) Ping(ctx context.Context) error {
	return await(ctx, "ping", func() error {
		_, _, err := s.client.From(resultsTable).Select("id", "", false).Limit(1, "").Execute()
		return err
	})
}

func (s *PostgRESTStore) Close() {}

// await runs a blocking client call and returns early when ctx ends. The
// client takes no context, so an abandoned request still runs to completion
// in the background.
func await(ctx context.Context, op string, call func() error) error {
	if err := ctx.Err(); err != nil {
		return apperr.Storage(op, err)
	}

	done := make(chan error, 1)
	go func() { done <- call() }()

	select {
	case err := <-done:
		if err != nil {
			return apperr.Storage(op, err)
		}
		return nil
	case <-ctx.Done():
		return apperr.Storage(op, ctx.Err())
	}
}
