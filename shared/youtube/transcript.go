package youtube

import (
	"context"

	"github.com/sirupsen/logrus"
)

// CaptionStub stands in for a transcript source. Caption extraction is not
// implemented, so every lookup yields an empty transcript and the analysis
// falls back to metadata.
type CaptionStub struct {
	log *logrus.Logger
}

func NewCaptionStub(log *logrus.Logger) *CaptionStub {
	return &CaptionStub{log: log}
}

func (s *CaptionStub) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	s.log.WithField("video_id", videoID).Debug("No transcript source configured")
	return "", nil
}
