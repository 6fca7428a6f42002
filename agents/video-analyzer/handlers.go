package videoanalyzer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"video-analyzer/internal/models"
	"video-analyzer/shared/apperr"
	"video-analyzer/shared/auth"
	"video-analyzer/shared/progress"
	"video-analyzer/shared/storage"
)

type analyzeRequest struct {
	YouTubeURL      string   `json:"youtubeUrl" validate:"required"`
	CharacterImages []string `json:"characterImages"`
	ImageModel      string   `json:"imageModel" validate:"omitempty,oneof=nano-banana nano-banana-pro"`
}

type verifyPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

// Handlers serves the analysis, history and password endpoints.
type Handlers struct {
	pipeline *Pipeline
	store    storage.Store
	verifier *auth.Verifier
	validate *validator.Validate
	log      *logrus.Logger
}

func NewHandlers(pipeline *Pipeline, store storage.Store, verifier *auth.Verifier, log *logrus.Logger) *Handlers {
	validate := validator.New()
	// Report JSON field names in validation messages.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handlers{
		pipeline: pipeline,
		store:    store,
		verifier: verifier,
		validate: validate,
		log:      log,
	}
}

// Analyze starts a pipeline run and streams its progress as server-sent
// events. Bad requests are rejected before the stream starts.
// POST /api/analyze
func (h *Handlers) Analyze(c *fiber.Ctx) error {
	var payload analyzeRequest
	if err := c.BodyParser(&payload); err != nil {
		return respondWithError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	payload.YouTubeURL = strings.TrimSpace(payload.YouTubeURL)
	if err := h.validate.Struct(payload); err != nil {
		return respondWithError(c, fiber.StatusBadRequest, validationMessage(err))
	}

	req := Request{
		SourceURL:       payload.YouTubeURL,
		AuxiliaryImages: payload.CharacterImages,
		ImageModel:      models.ImageModel(payload.ImageModel),
	}
	if req.AuxiliaryImages == nil {
		req.AuxiliaryImages = []string{}
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	requestID, _ := c.Locals("requestid").(string)
	log := h.log.WithField("request_id", requestID)
	pipeline := h.pipeline

	// The request context is recycled once the handler returns, so the run
	// gets its own.
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		stream := progress.NewStream(progress.DefaultBuffer)
		go func() {
			_, _ = pipeline.Run(context.Background(), req, stream)
		}()
		streamEvents(w, stream, log)
	})
	return nil
}

// streamEvents writes every event to w. After a failed write it keeps
// draining so the pipeline never blocks on a departed client.
func streamEvents(w *bufio.Writer, stream *progress.Stream, log *logrus.Entry) {
	connected := true
	for event := range stream.Events() {
		if !connected {
			continue
		}
		if err := progress.Encode(w, event); err != nil {
			connected = false
		} else if err := w.Flush(); err != nil {
			connected = false
		}
		if !connected {
			log.WithField("step", event.Step).Info("Client disconnected, discarding remaining events")
		}
	}
}

// ListHistory returns every stored result, newest first.
// GET /api/history
func (h *Handlers) ListHistory(c *fiber.Ctx) error {
	results, err := h.store.List(c.UserContext())
	if err != nil {
		return h.respondWithStoreError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(results)
}

// GetHistory returns one stored result.
// GET /api/history/:id
func (h *Handlers) GetHistory(c *fiber.Ctx) error {
	id := c.Params("id")
	result, found, err := h.store.Get(c.UserContext(), id)
	if err != nil {
		return h.respondWithStoreError(c, err)
	}
	if !found {
		return h.respondWithStoreError(c, fmt.Errorf("result %s: %w", id, apperr.ErrNotFound))
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// DeleteHistory removes one stored result.
// DELETE /api/history/:id
func (h *Handlers) DeleteHistory(c *fiber.Ctx) error {
	id := c.Params("id")
	deleted, err := h.store.Delete(c.UserContext(), id)
	if err != nil {
		return h.respondWithStoreError(c, err)
	}
	if !deleted {
		return h.respondWithStoreError(c, fmt.Errorf("result %s: %w", id, apperr.ErrNotFound))
	}

	h.log.WithField("result_id", id).Info("Analysis result deleted")
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

// VerifyPassword checks the shared site password.
// POST /api/verify-password
func (h *Handlers) VerifyPassword(c *fiber.Ctx) error {
	var payload verifyPasswordRequest
	if err := c.BodyParser(&payload); err != nil {
		return respondWithError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validate.Struct(payload); err != nil {
		return respondWithError(c, fiber.StatusBadRequest, "Password is required")
	}

	switch err := h.verifier.Verify(payload.Password); {
	case err == nil:
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
	case errors.Is(err, auth.ErrNotConfigured):
		h.log.WithError(err).Error("Password check requested but SITE_PASSWORD is not set")
		return respondWithError(c, fiber.StatusInternalServerError, "Server configuration error")
	default:
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid password",
		})
	}
}

// MethodNotAllowed answers requests to a known path with an unsupported method.
func MethodNotAllowed(c *fiber.Ctx) error {
	return respondWithError(c, fiber.StatusMethodNotAllowed, "Method not allowed")
}

func (h *Handlers) respondWithStoreError(c *fiber.Ctx, err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return respondWithError(c, fiber.StatusNotFound, "Result not found")
	}
	h.log.WithError(err).WithField("path", c.Path()).Error("Result store request failed")
	return respondWithError(c, fiber.StatusInternalServerError, "Internal server error")
}

func respondWithError(c *fiber.Ctx, statusCode int, message string) error {
	return c.Status(statusCode).JSON(fiber.Map{"error": message})
}

// validationMessage turns the first validation failure into a client-facing
// message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("Field '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
	}
}
