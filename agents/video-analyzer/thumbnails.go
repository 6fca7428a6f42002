package videoanalyzer

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"video-analyzer/internal/models"
)

type renderOutcome struct {
	proposal models.ThumbnailProposal
	ok       bool
}

// renderAll renders every idea concurrently. An idea without a prompt or
// with a failed render is dropped alone; the survivors keep the order of
// ideas and each gets a fresh id.
func renderAll(ctx context.Context, studio ThumbnailStudio, ideas []models.ThumbnailIdea, references []string, model models.ImageModel, log *logrus.Entry) []models.ThumbnailProposal {
	outcomes := make([]renderOutcome, len(ideas))

	var wg sync.WaitGroup
	for i, idea := range ideas {
		if strings.TrimSpace(idea.Prompt) == "" {
			log.WithFields(logrus.Fields{
				"proposal": i,
				"title":    idea.Title,
			}).Warn("Thumbnail proposal has no image prompt, dropping it")
			continue
		}

		wg.Add(1)
		go func(i int, idea models.ThumbnailIdea) {
			defer wg.Done()

			imageURL, err := studio.RenderThumbnail(ctx, idea, references, model)
			if err != nil {
				log.WithError(err).WithFields(logrus.Fields{
					"proposal": i,
					"title":    idea.Title,
				}).Warn("Thumbnail render failed, dropping proposal")
				return
			}

			outcomes[i] = renderOutcome{
				ok: true,
				proposal: models.ThumbnailProposal{
					ID:          uuid.NewString(),
					Title:       idea.Title,
					Description: idea.Description,
					ImageURL:    imageURL,
					DesignNotes: idea.DesignNotes,
					CTRReason:   idea.CTRReason,
					ModelUsed:   string(model),
				},
			}
		}(i, idea)
	}
	wg.Wait()

	thumbnails := make([]models.ThumbnailProposal, 0, len(ideas))
	for _, o := range outcomes {
		if o.ok {
			thumbnails = append(thumbnails, o.proposal)
		}
	}
	return thumbnails
}
