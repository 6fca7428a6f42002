package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"video-analyzer/internal/models"
	"video-analyzer/shared/apperr"
	"video-analyzer/shared/config"
)

const (
	analysisProvider = "analysis"

	// MaxTranscriptRunes bounds the transcript prefix sent with a prompt.
	MaxTranscriptRunes = 10000
)

const analysisInstruction = "You are an expert at analyzing YouTube videos. You help creators reuse " +
	"their archive efficiently by writing summaries and picking highlight scenes that work as clips."

// Analyzer produces a summary, key topics and highlight segments for a video.
type Analyzer struct {
	gen   *lazyGenerator
	model string
	log   *logrus.Logger
}

func NewAnalyzer(cfg *config.AnalysisConfig, log *logrus.Logger) *Analyzer {
	return &Analyzer{
		gen: &lazyGenerator{
			apiKey:  cfg.APIKey,
			setting: "analysis API key",
			envVar:  "ANALYSIS_API_KEY or GEMINI_API_KEY",
		},
		model: cfg.Model,
		log:   log,
	}
}

func (a *Analyzer) Analyze(ctx context.Context, video *models.VideoInfo, transcript string) (*models.ContentAnalysis, error) {
	if video == nil {
		return nil, fmt.Errorf("video cannot be nil")
	}

	gen, err := a.gen.get(ctx)
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		genai.NewContentFromText(buildAnalysisPrompt(video, transcript), genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(analysisInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    analysisSchema,
	}

	result, err := gen.GenerateContent(ctx, a.model, contents, cfg)
	if err != nil {
		return nil, apperr.Upstream(analysisProvider, describeCallError(err), err)
	}

	responseText := result.Text()
	if responseText == "" {
		return nil, apperr.Upstream(analysisProvider, "empty response", nil)
	}

	analysis, err := a.parseAnalysisResponse(responseText, video)
	if err != nil {
		return nil, apperr.Upstream(analysisProvider, "malformed analysis payload", err)
	}
	return analysis, nil
}

func buildAnalysisPrompt(video *models.VideoInfo, transcript string) string {
	var transcriptSection string
	if transcript != "" {
		transcriptSection = "TRANSCRIPT:\n" + truncateRunes(transcript, MaxTranscriptRunes)
	} else {
		transcriptSection = "NOTE: No transcript is available. Base the analysis on the video metadata alone."
	}

	return fmt.Sprintf(`Analyze the following YouTube video.

VIDEO METADATA:
Title: %s
Channel: %s
Duration: %s

%s

Respond in the following JSON format:
{
  "summary": "Summary of the video (2-3 paragraphs)",
  "keyTopics": ["topic 1", "topic 2", "topic 3"],
  "highlights": [
    {
      "id": "unique id",
      "title": "Scene title",
      "description": "Scene description",
      "startTime": "H:MM:SS",
      "endTime": "H:MM:SS",
      "startSeconds": 0,
      "endSeconds": 0,
      "reason": "Why this scene works as a clip"
    }
  ]
}

RULES:
- Pick 3-5 highlight scenes
- startTime and endTime must fall within the video duration
- startSeconds and endSeconds are the same timestamps expressed in seconds`,
		video.Title,
		video.ChannelName,
		video.Duration,
		transcriptSection,
	)
}

var highlightSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"id":           stringSchema("Unique id of the highlight"),
		"title":        stringSchema("Scene title"),
		"description":  stringSchema("Scene description"),
		"startTime":    stringSchema("Start timestamp as H:MM:SS or M:SS"),
		"endTime":      stringSchema("End timestamp as H:MM:SS or M:SS"),
		"startSeconds": integerSchema("Start offset in seconds"),
		"endSeconds":   integerSchema("End offset in seconds"),
		"reason":       stringSchema("Why the scene works as a clip"),
	},
	Required: []string{"title", "description", "startTime", "endTime", "startSeconds", "endSeconds", "reason"},
}

var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary":    stringSchema("Summary of the video"),
		"keyTopics":  {Type: genai.TypeArray, Items: stringSchema("Key topic")},
		"highlights": {Type: genai.TypeArray, Items: highlightSchema},
	},
	Required: []string{"summary", "keyTopics", "highlights"},
}

func (a *Analyzer) parseAnalysisResponse(response string, video *models.VideoInfo) (*models.ContentAnalysis, error) {
	var result models.ContentAnalysis
	if err := decodeStrict(response, &result, "summary", "keyTopics", "highlights"); err != nil {
		return nil, err
	}

	if strings.TrimSpace(result.Summary) == "" {
		return nil, fmt.Errorf("analysis summary is required but was empty")
	}

	seen := make(map[string]bool, len(result.Highlights))
	for i := range result.Highlights {
		h := &result.Highlights[i]
		if strings.TrimSpace(h.Title) == "" {
			return nil, fmt.Errorf("highlight %d has no title", i)
		}
		if h.ID == "" || seen[h.ID] {
			h.ID = uuid.NewString()
		}
		seen[h.ID] = true

		// Out-of-range offsets are kept as returned; only note them.
		if h.StartSeconds < 0 || h.EndSeconds <= h.StartSeconds ||
			(video.DurationSeconds > 0 && h.EndSeconds > video.DurationSeconds) {
			a.log.WithFields(logrus.Fields{
				"video_id":      video.VideoID,
				"highlight":     h.Title,
				"start_seconds": h.StartSeconds,
				"end_seconds":   h.EndSeconds,
			}).Warn("Highlight offsets outside the video duration")
		}
	}

	if result.KeyTopics == nil {
		result.KeyTopics = []string{}
	}
	return &result, nil
}
