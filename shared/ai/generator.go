package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"google.golang.org/genai"

	"video-analyzer/shared/apperr"
)

// generator is the slice of the genai client the adapters use.
// *genai.Models satisfies it.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// lazyGenerator creates the Gemini client on first use, so an absent key
// surfaces as a configuration error on the call that needs it.
type lazyGenerator struct {
	apiKey  string
	setting string
	envVar  string

	mu  sync.Mutex
	gen generator
}

func (l *lazyGenerator) get(ctx context.Context) (generator, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.gen != nil {
		return l.gen, nil
	}
	if l.apiKey == "" {
		return nil, apperr.Configuration(l.setting, l.envVar)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  l.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	l.gen = client.Models
	return l.gen, nil
}

// describeCallError turns a genai call failure into an upstream reason.
func describeCallError(err error) string {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("request returned status %d %s", apiErr.Code, apiErr.Status)
	}
	return "request failed"
}

// extractJSON returns the outermost JSON object in a model response. Models
// sometimes wrap JSON in prose or code fences even when asked not to.
func extractJSON(response string) (string, error) {
	startIdx := strings.Index(response, "{")
	endIdx := strings.LastIndex(response, "}")

	if startIdx == -1 || endIdx == -1 || endIdx < startIdx {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return response[startIdx : endIdx+1], nil
}

// decodeStrict checks that every required key is present before decoding
// into out, so a missing field is reported by name instead of silently
// becoming a zero value.
func decodeStrict(response string, out any, required ...string) error {
	jsonStr, err := extractJSON(response)
	if err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}

	var missing []string
	for _, key := range required {
		v, ok := raw[key]
		if !ok || string(v) == "null" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}

	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return fmt.Errorf("unexpected field types: %w", err)
	}
	return nil
}

func truncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == maxRunes {
			return s[:i]
		}
		count++
	}
	return s
}

func stringSchema(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

func integerSchema(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeInteger, Description: description}
}
