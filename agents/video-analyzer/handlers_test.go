package videoanalyzer

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"video-analyzer/internal/models"
	"video-analyzer/shared/auth"
	"video-analyzer/shared/config"
	"video-analyzer/shared/logging"
	"video-analyzer/shared/monitoring"
	"video-analyzer/shared/progress"
)

func newTestApp(t *testing.T, f *fixture, sitePassword string) *fiber.App {
	t.Helper()
	handlers := NewHandlers(f.pipeline(), f.store, auth.NewVerifier(sitePassword), logging.Discard())
	return NewServer(&config.ServerConfig{AllowOrigins: "*"}, handlers, monitoring.NewHealthHandlers(f.monitor), logging.Discard())
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, 10000)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestAnalyzeRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		body    string
		status  int
		message string
	}{
		{"Wrong method", "GET", "", fiber.StatusMethodNotAllowed, "Method not allowed"},
		{"Put", "PUT", `{"youtubeUrl":"` + testURL + `"}`, fiber.StatusMethodNotAllowed, "Method not allowed"},
		{"Malformed JSON", "POST", `{"youtubeUrl":`, fiber.StatusBadRequest, "Invalid request body"},
		{"Missing URL", "POST", `{"characterImages":[]}`, fiber.StatusBadRequest, "youtubeUrl is required"},
		{"Blank URL", "POST", `{"youtubeUrl":"   "}`, fiber.StatusBadRequest, "youtubeUrl is required"},
		{"Unknown image model", "POST", `{"youtubeUrl":"` + testURL + `","imageModel":"dall-e"}`, fiber.StatusBadRequest,
			"imageModel must be one of: nano-banana, nano-banana-pro"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			resp := doRequest(t, newTestApp(t, f, ""), tt.method, "/api/analyze", tt.body)
			require.Equal(t, tt.status, resp.StatusCode)
			require.NotContains(t, resp.Header.Get("Content-Type"), "text/event-stream")

			var body map[string]string
			decodeBody(t, resp, &body)
			require.Equal(t, tt.message, body["error"])
			require.False(t, f.metadata.called)
		})
	}
}

func TestAnalyzeStreamsProgress(t *testing.T) {
	f := newFixture()
	app := newTestApp(t, f, "")

	resp := doRequest(t, app, "POST", "/api/analyze",
		`{"youtubeUrl":"`+testURL+`","imageModel":"nano-banana-pro"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	require.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	var (
		steps  []progress.Step
		result models.AnalysisResult
	)
	err := progress.Consume(resp.Body, func(e progress.RawEvent) {
		if len(steps) == 0 || steps[len(steps)-1] != e.Step {
			steps = append(steps, e.Step)
		}
		if e.Step == progress.StepComplete {
			require.NoError(t, json.Unmarshal(e.Data, &result))
		}
	})
	require.NoError(t, err)
	require.Equal(t, []progress.Step{
		progress.StepValidate, progress.StepFetchInfo, progress.StepFetchTranscript,
		progress.StepAnalyze, progress.StepGenerateThumbnails, progress.StepSave, progress.StepComplete,
	}, steps)
	require.Equal(t, "dQw4w9WgXcQ", result.VideoID)
	require.Len(t, result.Thumbnails, 3)
	require.Equal(t, "nano-banana-pro", result.Thumbnails[0].ModelUsed)

	// The completed run is visible in the history.
	resp = doRequest(t, app, "GET", "/api/history", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var history []models.AnalysisResult
	decodeBody(t, resp, &history)
	require.Len(t, history, 1)
	require.Equal(t, result.ID, history[0].ID)
}

func TestAnalyzeStreamsErrorEvent(t *testing.T) {
	f := newFixture()
	resp := doRequest(t, newTestApp(t, f, ""), "POST", "/api/analyze", `{"youtubeUrl":"https://example.com/video"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var steps []progress.Step
	err := progress.Consume(resp.Body, func(e progress.RawEvent) {
		steps = append(steps, e.Step)
	})

	var streamErr *progress.StreamError
	require.True(t, errors.As(err, &streamErr))
	require.Equal(t, "Invalid YouTube URL", streamErr.Message)
	require.Equal(t, []progress.Step{progress.StepValidate, progress.StepError}, steps)
}

func TestHistoryEndpoints(t *testing.T) {
	f := newFixture()
	app := newTestApp(t, f, "")

	resp := doRequest(t, app, "GET", "/api/history", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(body))

	_, stored, err := f.run(t, Request{SourceURL: testURL})
	require.NoError(t, err)

	resp = doRequest(t, app, "GET", "/api/history/"+stored.ID, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var got map[string]any
	decodeBody(t, resp, &got)
	require.Equal(t, stored.ID, got["id"])
	require.Equal(t, "Never Gonna Give You Up", got["videoTitle"])
	require.Contains(t, got, "createdAt")
	require.Contains(t, got, "keyTopics")

	resp = doRequest(t, app, "DELETE", "/api/history/"+stored.ID, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var deleted map[string]bool
	decodeBody(t, resp, &deleted)
	require.True(t, deleted["success"])

	resp = doRequest(t, app, "DELETE", "/api/history/"+stored.ID, "")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, app, "GET", "/api/history/"+stored.ID, "")
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	var missing map[string]string
	decodeBody(t, resp, &missing)
	require.Equal(t, "Result not found", missing["error"])

	resp = doRequest(t, app, "PUT", "/api/history/"+stored.ID, `{}`)
	require.Equal(t, fiber.StatusMethodNotAllowed, resp.StatusCode)
	resp = doRequest(t, app, "POST", "/api/history", `{}`)
	require.Equal(t, fiber.StatusMethodNotAllowed, resp.StatusCode)
}

func TestVerifyPassword(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		method   string
		body     string
		status   int
		wantJSON string
	}{
		{"Correct", "hunter2", "POST", `{"password":"hunter2"}`, fiber.StatusOK, `{"success":true}`},
		{"Wrong", "hunter2", "POST", `{"password":"hunter3"}`, fiber.StatusUnauthorized, `{"success":false,"error":"Invalid password"}`},
		{"Missing", "hunter2", "POST", `{}`, fiber.StatusBadRequest, `{"error":"Password is required"}`},
		{"Not configured", "", "POST", `{"password":"hunter2"}`, fiber.StatusInternalServerError, `{"error":"Server configuration error"}`},
		{"Wrong method", "hunter2", "GET", "", fiber.StatusMethodNotAllowed, `{"error":"Method not allowed"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, newTestApp(t, newFixture(), tt.secret), tt.method, "/api/verify-password", tt.body)
			require.Equal(t, tt.status, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.JSONEq(t, tt.wantJSON, string(body))
		})
	}
}

func TestHealthRoutesAreMounted(t *testing.T) {
	f := newFixture()
	resp := doRequest(t, newTestApp(t, f, ""), "GET", "/health", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestCORSHeaders(t *testing.T) {
	app := newTestApp(t, newFixture(), "")
	req := httptest.NewRequest("GET", "/api/history", nil)
	req.Header.Set("Origin", "https://studio.example.com")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
