package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"video-analyzer/internal/models"
)

const resultsTable = "analysis_results"

// resultRow is the relational shape of an AnalysisResult. Nested lists
// live in JSONB columns.
type resultRow struct {
	ID             string          `json:"id"`
	VideoID        string          `json:"video_id"`
	VideoTitle     string          `json:"video_title"`
	VideoThumbnail string          `json:"video_thumbnail"`
	VideoDuration  string          `json:"video_duration"`
	ChannelName    string          `json:"channel_name"`
	Summary        string          `json:"summary"`
	KeyTopics      json.RawMessage `json:"key_topics"`
	Highlights     json.RawMessage `json:"highlights"`
	Thumbnails     json.RawMessage `json:"thumbnails"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
}

func toRow(r *models.AnalysisResult) (*resultRow, error) {
	c := r.Clone()

	keyTopics, err := json.Marshal(c.KeyTopics)
	if err != nil {
		return nil, fmt.Errorf("encode key topics: %w", err)
	}
	highlights, err := json.Marshal(c.Highlights)
	if err != nil {
		return nil, fmt.Errorf("encode highlights: %w", err)
	}
	thumbnails, err := json.Marshal(c.Thumbnails)
	if err != nil {
		return nil, fmt.Errorf("encode thumbnails: %w", err)
	}

	return &resultRow{
		ID:             c.ID,
		VideoID:        c.VideoID,
		VideoTitle:     c.VideoTitle,
		VideoThumbnail: c.VideoThumbnail,
		VideoDuration:  c.VideoDuration,
		ChannelName:    c.ChannelName,
		Summary:        c.Summary,
		KeyTopics:      keyTopics,
		Highlights:     highlights,
		Thumbnails:     thumbnails,
	}, nil
}

func (row *resultRow) toModel() (*models.AnalysisResult, error) {
	r := &models.AnalysisResult{
		ID:             row.ID,
		VideoID:        row.VideoID,
		VideoTitle:     row.VideoTitle,
		VideoThumbnail: row.VideoThumbnail,
		VideoDuration:  row.VideoDuration,
		ChannelName:    row.ChannelName,
		Summary:        row.Summary,
	}
	if row.CreatedAt != nil {
		r.CreatedAt = row.CreatedAt.UTC()
	}
	if err := decodeColumn(row.KeyTopics, &r.KeyTopics); err != nil {
		return nil, fmt.Errorf("decode key_topics of %s: %w", row.ID, err)
	}
	if err := decodeColumn(row.Highlights, &r.Highlights); err != nil {
		return nil, fmt.Errorf("decode highlights of %s: %w", row.ID, err)
	}
	if err := decodeColumn(row.Thumbnails, &r.Thumbnails); err != nil {
		return nil, fmt.Errorf("decode thumbnails of %s: %w", row.ID, err)
	}
	r.Normalize()
	return r, nil
}

func decodeColumn(raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, out)
}
