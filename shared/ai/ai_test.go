package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"video-analyzer/internal/models"
	"video-analyzer/shared/apperr"
	"video-analyzer/shared/config"
	"video-analyzer/shared/logging"
)

// fakeGenerator records requests and answers from a canned function.
type fakeGenerator struct {
	mu      sync.Mutex
	calls   []fakeCall
	respond func(model string, contents []*genai.Content) (*genai.GenerateContentResponse, error)
}

type fakeCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fakeCall{model: model, contents: contents, config: cfg})
	f.mu.Unlock()
	return f.respond(model, contents)
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func imageResponse(data []byte, mimeType string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "Here is your thumbnail"},
				{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}},
			}},
		}},
	}
}

func promptText(contents []*genai.Content) string {
	var sb strings.Builder
	for _, c := range contents {
		for _, p := range c.Parts {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

var testVideo = &models.VideoInfo{
	VideoID:         "abc123",
	Title:           "Building a Go service",
	Duration:        "10:00",
	DurationSeconds: 600,
	ChannelName:     "Gophers",
}

func newTestAnalyzer(gen generator) *Analyzer {
	a := NewAnalyzer(&config.AnalysisConfig{APIKey: "test", Model: "gemini-test"}, logging.Discard())
	a.gen.gen = gen
	return a
}

const validAnalysis = "```json\n" + `{
  "summary": "A walkthrough of building a Go service.",
  "keyTopics": ["go", "http", "testing"],
  "highlights": [
    {"id": "h1", "title": "Intro", "description": "Setup", "startTime": "0:10", "endTime": "0:40",
     "startSeconds": 10, "endSeconds": 40, "reason": "Hook"},
    {"title": "Deep dive", "description": "Handlers", "startTime": "5:00", "endTime": "9:00",
     "startSeconds": 300, "endSeconds": 540, "reason": "Core content"},
    {"id": "h1", "title": "Past the end", "description": "Outro", "startTime": "12:00", "endTime": "13:00",
     "startSeconds": 720, "endSeconds": 780, "reason": "Wrap up"}
  ]
}` + "\n```"

func TestAnalyze(t *testing.T) {
	fake := &fakeGenerator{respond: func(string, []*genai.Content) (*genai.GenerateContentResponse, error) {
		return textResponse(validAnalysis), nil
	}}

	analysis, err := newTestAnalyzer(fake).Analyze(context.Background(), testVideo, "hello transcript")
	require.NoError(t, err)
	require.Equal(t, "A walkthrough of building a Go service.", analysis.Summary)
	require.Equal(t, []string{"go", "http", "testing"}, analysis.KeyTopics)
	require.Len(t, analysis.Highlights, 3)

	// Missing and duplicate ids are replaced so ids stay unique.
	ids := map[string]bool{}
	for _, h := range analysis.Highlights {
		require.NotEmpty(t, h.ID)
		ids[h.ID] = true
	}
	require.Len(t, ids, 3)
	require.Equal(t, "h1", analysis.Highlights[0].ID)

	// Offsets past the video end are passed through untouched.
	require.Equal(t, 720, analysis.Highlights[2].StartSeconds)

	require.Len(t, fake.calls, 1)
	require.Equal(t, "gemini-test", fake.calls[0].model)
	require.Equal(t, "application/json", fake.calls[0].config.ResponseMIMEType)
	require.Contains(t, promptText(fake.calls[0].contents), "TRANSCRIPT:\nhello transcript")
}

func TestAnalyzePromptWithoutTranscript(t *testing.T) {
	prompt := buildAnalysisPrompt(testVideo, "")
	require.Contains(t, prompt, "No transcript is available")
	require.NotContains(t, prompt, "TRANSCRIPT:")
}

func TestAnalyzePromptTruncatesTranscript(t *testing.T) {
	transcript := strings.Repeat("あ", MaxTranscriptRunes+500)
	prompt := buildAnalysisPrompt(testVideo, transcript)

	require.Contains(t, prompt, strings.Repeat("あ", MaxTranscriptRunes))
	require.NotContains(t, prompt, strings.Repeat("あ", MaxTranscriptRunes+1))
}

func TestAnalyzeMalformedPayloads(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"Not JSON", "I cannot analyze this video."},
		{"Broken JSON", `{"summary": "x", "keyTopics": [}`},
		{"Missing highlights", `{"summary": "x", "keyTopics": []}`},
		{"Null summary", `{"summary": null, "keyTopics": [], "highlights": []}`},
		{"Empty summary", `{"summary": "  ", "keyTopics": [], "highlights": []}`},
		{"Wrong types", `{"summary": "x", "keyTopics": "go", "highlights": []}`},
		{"Highlight without title", `{"summary": "x", "keyTopics": [], "highlights": [{"startSeconds": 1, "endSeconds": 2}]}`},
		{"Empty response", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeGenerator{respond: func(string, []*genai.Content) (*genai.GenerateContentResponse, error) {
				return textResponse(tt.response), nil
			}}

			_, err := newTestAnalyzer(fake).Analyze(context.Background(), testVideo, "")
			require.Error(t, err)
			require.True(t, apperr.IsUpstream(err), "want UpstreamError, got %v", err)
		})
	}
}

func TestAnalyzeProviderFailure(t *testing.T) {
	fake := &fakeGenerator{respond: func(string, []*genai.Content) (*genai.GenerateContentResponse, error) {
		return nil, genai.APIError{Code: 429, Status: "RESOURCE_EXHAUSTED", Message: "quota"}
	}}

	_, err := newTestAnalyzer(fake).Analyze(context.Background(), testVideo, "")
	var ue *apperr.UpstreamError
	require.True(t, errors.As(err, &ue))
	require.Equal(t, "analysis", ue.Provider)
	require.Contains(t, ue.Reason, "429")
}

func TestAnalyzeMissingKey(t *testing.T) {
	a := NewAnalyzer(&config.AnalysisConfig{Model: "gemini-test"}, logging.Discard())
	_, err := a.Analyze(context.Background(), testVideo, "")
	require.ErrorIs(t, err, apperr.ErrConfiguration)
}

func newTestStudio(gen generator) *ThumbnailStudio {
	cfg := &config.ImagesConfig{
		APIKey:        "test",
		ProposalModel: "proposal-model",
		RenderModels: map[string]string{
			"nano-banana":     "flash-image",
			"nano-banana-pro": "pro-image",
		},
	}
	s := NewThumbnailStudio(cfg, logging.Discard())
	s.gen.gen = gen
	return s
}

func TestProposeThumbnails(t *testing.T) {
	fake := &fakeGenerator{respond: func(string, []*genai.Content) (*genai.GenerateContentResponse, error) {
		return textResponse(`{"proposals": [
			{"title": "Bold", "description": "Big text", "designNotes": "Yellow on black", "ctrReason": "Contrast", "prompt": "bold thumbnail"},
			{"title": "Face", "description": "Reaction", "designNotes": "Close-up", "ctrReason": "Emotion", "prompt": "surprised face"}
		]}`), nil
	}}

	ideas, err := newTestStudio(fake).ProposeThumbnails(context.Background(), ThumbnailBrief{
		Video:     testVideo,
		Summary:   "summary",
		KeyTopics: []string{"go", "http"},
	})
	require.NoError(t, err)
	require.Len(t, ideas, 2)
	require.Equal(t, "surprised face", ideas[1].Prompt)
	require.Equal(t, "proposal-model", fake.calls[0].model)
	require.Contains(t, promptText(fake.calls[0].contents), "Key topics: go, http")
}

func TestProposeThumbnailsAcceptsAnyCount(t *testing.T) {
	tests := []struct {
		name     string
		response string
		titles   []string
	}{
		{"Empty list", `{"proposals": []}`, []string{}},
		{"Idea without prompt", `{"proposals": [
			{"title": "One", "prompt": "one"},
			{"title": "Two", "prompt": "two"},
			{"title": "Three", "prompt": ""},
			{"title": "Four", "prompt": "four"}
		]}`, []string{"One", "Two", "Three", "Four"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeGenerator{respond: func(string, []*genai.Content) (*genai.GenerateContentResponse, error) {
				return textResponse(tt.response), nil
			}}
			ideas, err := newTestStudio(fake).ProposeThumbnails(context.Background(), ThumbnailBrief{Video: testVideo})
			require.NoError(t, err)
			require.NotNil(t, ideas)

			titles := make([]string, 0, len(ideas))
			for _, idea := range ideas {
				titles = append(titles, idea.Title)
			}
			require.Equal(t, tt.titles, titles)
		})
	}
}

func TestProposeThumbnailsRejectsBadPayload(t *testing.T) {
	tests := []string{
		`{"proposals": "bold thumbnail"}`,
		`{"ideas": []}`,
		`no json here`,
	}

	for _, response := range tests {
		fake := &fakeGenerator{respond: func(string, []*genai.Content) (*genai.GenerateContentResponse, error) {
			return textResponse(response), nil
		}}
		_, err := newTestStudio(fake).ProposeThumbnails(context.Background(), ThumbnailBrief{Video: testVideo})
		require.Error(t, err, response)
		require.True(t, apperr.IsUpstream(err))
	}
}

func TestRenderThumbnail(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	fake := &fakeGenerator{respond: func(string, []*genai.Content) (*genai.GenerateContentResponse, error) {
		return imageResponse(png, "image/png"), nil
	}}
	studio := newTestStudio(fake)

	reference := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg"))
	imageURL, err := studio.RenderThumbnail(context.Background(),
		models.ThumbnailIdea{Prompt: "bold thumbnail"},
		[]string{reference, "https://example.com/character.png", "ftp://nope", "data:text/plain;base64,aGk="},
		models.ImageModelNanoBananaPro,
	)
	require.NoError(t, err)
	require.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString(png), imageURL)

	require.Len(t, fake.calls, 1)
	call := fake.calls[0]
	require.Equal(t, "pro-image", call.model)
	require.Equal(t, []string{"TEXT", "IMAGE"}, call.config.ResponseModalities)

	parts := call.contents[0].Parts
	require.Len(t, parts, 3, "prompt plus two usable references")
	require.Contains(t, parts[0].Text, "reference images")
	require.Equal(t, []byte("jpeg"), parts[1].InlineData.Data)
	require.Equal(t, "https://example.com/character.png", parts[2].FileData.FileURI)
	require.Equal(t, "image/png", parts[2].FileData.MIMEType)
}

func TestRenderThumbnailFailures(t *testing.T) {
	t.Run("No image in response", func(t *testing.T) {
		fake := &fakeGenerator{respond: func(string, []*genai.Content) (*genai.GenerateContentResponse, error) {
			return textResponse("I can't draw that"), nil
		}}
		_, err := newTestStudio(fake).RenderThumbnail(context.Background(), models.ThumbnailIdea{Prompt: "x"}, nil, models.ImageModelNanoBanana)
		require.True(t, apperr.IsUpstream(err))
	})

	t.Run("Unknown model", func(t *testing.T) {
		fake := &fakeGenerator{respond: func(string, []*genai.Content) (*genai.GenerateContentResponse, error) {
			t.Fatal("provider should not be called")
			return nil, nil
		}}
		_, err := newTestStudio(fake).RenderThumbnail(context.Background(), models.ThumbnailIdea{Prompt: "x"}, nil, "dall-e")
		require.Error(t, err)
	})

	t.Run("Missing prompt", func(t *testing.T) {
		fake := &fakeGenerator{respond: func(string, []*genai.Content) (*genai.GenerateContentResponse, error) {
			t.Fatal("provider should not be called")
			return nil, nil
		}}
		_, err := newTestStudio(fake).RenderThumbnail(context.Background(), models.ThumbnailIdea{Title: "Blank", Prompt: "  "}, nil, models.ImageModelNanoBanana)
		require.True(t, apperr.IsUpstream(err))
		require.Empty(t, fake.calls)
	})

	t.Run("Missing key", func(t *testing.T) {
		studio := NewThumbnailStudio(&config.ImagesConfig{RenderModels: map[string]string{"nano-banana": "m"}}, logging.Discard())
		_, err := studio.RenderThumbnail(context.Background(), models.ThumbnailIdea{Prompt: "x"}, nil, models.ImageModelNanoBanana)
		require.ErrorIs(t, err, apperr.ErrConfiguration)
	})
}

func TestParseDataURL(t *testing.T) {
	data, mimeType, err := parseDataURL("data:image/webp;base64," + base64.StdEncoding.EncodeToString([]byte("webp")))
	require.NoError(t, err)
	require.Equal(t, "image/webp", mimeType)
	require.Equal(t, []byte("webp"), data)

	for _, bad := range []string{"data:image/png;base64", "data:image/png,rawdata", "data:text/plain;base64,aGk=", "data:image/png;base64,!!!"} {
		_, _, err := parseDataURL(bad)
		require.Error(t, err, bad)
	}
}
