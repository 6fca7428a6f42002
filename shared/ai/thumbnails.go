package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"video-analyzer/internal/models"
	"video-analyzer/shared/apperr"
	"video-analyzer/shared/config"
)

const imageProvider = "image-generation"

// ThumbnailBrief is the context a thumbnail proposal is written from.
type ThumbnailBrief struct {
	Video     *models.VideoInfo
	Summary   string
	KeyTopics []string
}

// ThumbnailStudio talks to the image provider: one call drafts thumbnail
// ideas, then each idea is rendered separately.
type ThumbnailStudio struct {
	gen           *lazyGenerator
	proposalModel string
	images        *config.ImagesConfig
	log           *logrus.Logger
}

func NewThumbnailStudio(cfg *config.ImagesConfig, log *logrus.Logger) *ThumbnailStudio {
	return &ThumbnailStudio{
		gen: &lazyGenerator{
			apiKey:  cfg.APIKey,
			setting: "image provider API key",
			envVar:  "GEMINI_API_KEY",
		},
		proposalModel: cfg.ProposalModel,
		images:        cfg,
		log:           log,
	}
}

var proposalSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"proposals": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title":       stringSchema("Thumbnail title"),
					"description": stringSchema("Thumbnail description"),
					"designNotes": stringSchema("Design notes: colors, layout, typography"),
					"ctrReason":   stringSchema("Why this thumbnail should raise click-through rate"),
					"prompt":      stringSchema("Image generation prompt in English"),
				},
				Required: []string{"title", "description", "designNotes", "ctrReason", "prompt"},
			},
		},
	},
	Required: []string{"proposals"},
}

// ProposeThumbnails drafts thumbnail ideas for the video. The model is asked
// for 3-5 but any count is accepted, including none. Ideas without a prompt
// are kept here and rejected by RenderThumbnail.
func (s *ThumbnailStudio) ProposeThumbnails(ctx context.Context, brief ThumbnailBrief) ([]models.ThumbnailIdea, error) {
	if brief.Video == nil {
		return nil, fmt.Errorf("video cannot be nil")
	}

	gen, err := s.gen.get(ctx)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Create 3-5 thumbnail proposals for the following YouTube video.

Title: %s
Channel: %s
Summary: %s
Key topics: %s

Respond in the following JSON format:
{
  "proposals": [
    {
      "title": "Thumbnail title",
      "description": "Thumbnail description",
      "designNotes": "Design notes (colors, layout, etc.)",
      "ctrReason": "Why this improves click-through rate",
      "prompt": "Image generation prompt (English)"
    }
  ]
}`,
		brief.Video.Title,
		brief.Video.ChannelName,
		brief.Summary,
		strings.Join(brief.KeyTopics, ", "),
	)

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   proposalSchema,
	}

	result, err := gen.GenerateContent(ctx, s.proposalModel, contents, cfg)
	if err != nil {
		return nil, apperr.Upstream(imageProvider, describeCallError(err), err)
	}

	responseText := result.Text()
	if responseText == "" {
		return nil, apperr.Upstream(imageProvider, "empty proposal response", nil)
	}

	var payload struct {
		Proposals []models.ThumbnailIdea `json:"proposals"`
	}
	if err := decodeStrict(responseText, &payload, "proposals"); err != nil {
		return nil, apperr.Upstream(imageProvider, "malformed proposal payload", err)
	}
	if payload.Proposals == nil {
		payload.Proposals = []models.ThumbnailIdea{}
	}

	return payload.Proposals, nil
}

// RenderThumbnail synthesizes one image for idea and returns it as a data
// URL. References are character images the render should include.
func (s *ThumbnailStudio) RenderThumbnail(ctx context.Context, idea models.ThumbnailIdea, references []string, model models.ImageModel) (string, error) {
	modelID, ok := s.images.RenderModel(string(model))
	if !ok {
		return "", fmt.Errorf("unsupported image model %q", model)
	}
	if strings.TrimSpace(idea.Prompt) == "" {
		return "", apperr.Upstream(imageProvider, "proposal has no image prompt", nil)
	}

	gen, err := s.gen.get(ctx)
	if err != nil {
		return "", err
	}

	prompt := idea.Prompt
	refParts := s.referenceParts(references)
	if len(refParts) > 0 {
		prompt += "\n\nFeature the character shown in the attached reference images."
	}
	parts := append([]*genai.Part{genai.NewPartFromText(prompt)}, refParts...)

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	result, err := gen.GenerateContent(ctx, modelID, contents, cfg)
	if err != nil {
		return "", apperr.Upstream(imageProvider, describeCallError(err), err)
	}

	imageURL, ok := firstInlineImage(result)
	if !ok {
		return "", apperr.Upstream(imageProvider, "response contained no image", nil)
	}
	return imageURL, nil
}

func firstInlineImage(resp *genai.GenerateContentResponse) (string, bool) {
	if resp == nil {
		return "", false
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mimeType := part.InlineData.MIMEType
			if mimeType == "" {
				mimeType = "image/png"
			}
			return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(part.InlineData.Data), true
		}
	}
	return "", false
}

// referenceParts converts reference images into request parts. Unusable
// references are skipped with a warning so they cannot fail every render.
func (s *ThumbnailStudio) referenceParts(references []string) []*genai.Part {
	var parts []*genai.Part
	for i, ref := range references {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if strings.HasPrefix(ref, "data:") {
			data, mimeType, err := parseDataURL(ref)
			if err != nil {
				s.log.WithField("reference", i).WithError(err).Warn("Skipping unreadable reference image")
				continue
			}
			parts = append(parts, genai.NewPartFromBytes(data, mimeType))
			continue
		}

		u, err := url.Parse(ref)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			s.log.WithField("reference", i).Warn("Skipping reference image with unsupported URL")
			continue
		}
		mimeType := mime.TypeByExtension(path.Ext(u.Path))
		if !strings.HasPrefix(mimeType, "image/") {
			mimeType = "image/jpeg"
		}
		parts = append(parts, genai.NewPartFromURI(ref, mimeType))
	}
	return parts
}

// parseDataURL decodes a base64 data URL such as "data:image/png;base64,...".
func parseDataURL(dataURL string) ([]byte, string, error) {
	header, payload, found := strings.Cut(strings.TrimPrefix(dataURL, "data:"), ",")
	if !found {
		return nil, "", fmt.Errorf("data URL has no payload")
	}
	mimeType, encoding, _ := strings.Cut(header, ";")
	if encoding != "base64" {
		return nil, "", fmt.Errorf("data URL is not base64 encoded")
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, "", fmt.Errorf("data URL is not an image: %q", mimeType)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode data URL: %w", err)
	}
	return data, mimeType, nil
}
