package videoanalyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"video-analyzer/internal/models"
	"video-analyzer/shared/ai"
	"video-analyzer/shared/apperr"
	"video-analyzer/shared/monitoring"
	"video-analyzer/shared/progress"
	"video-analyzer/shared/youtube"
)

var (
	// ErrTimedOut is returned when a run exceeds its deadline.
	ErrTimedOut = errors.New("analysis timed out")
	// ErrUnsupportedImageModel is returned, wrapped with
	// apperr.ErrInvalidInput, for an image model outside the public set.
	ErrUnsupportedImageModel = errors.New("unsupported image model")
)

type MetadataFetcher interface {
	FetchVideoInfo(ctx context.Context, videoID string) (*models.VideoInfo, error)
}

type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, videoID string) (string, error)
}

type ContentAnalyzer interface {
	Analyze(ctx context.Context, video *models.VideoInfo, transcript string) (*models.ContentAnalysis, error)
}

type ThumbnailStudio interface {
	ProposeThumbnails(ctx context.Context, brief ai.ThumbnailBrief) ([]models.ThumbnailIdea, error)
	RenderThumbnail(ctx context.Context, idea models.ThumbnailIdea, references []string, model models.ImageModel) (string, error)
}

type ResultInserter interface {
	Insert(ctx context.Context, result *models.AnalysisResult) (*models.AnalysisResult, error)
}

// Request is one analysis run as submitted by a client.
type Request struct {
	SourceURL       string
	AuxiliaryImages []string
	ImageModel      models.ImageModel
}

// Pipeline runs the analysis steps in order and reports each transition on
// a progress stream. Runs share no state besides the collaborators, which
// are safe for concurrent use.
type Pipeline struct {
	metadata    MetadataFetcher
	transcripts TranscriptFetcher
	analyzer    ContentAnalyzer
	studio      ThumbnailStudio
	store       ResultInserter
	monitor     *monitoring.Monitor
	timeout     time.Duration
	log         *logrus.Logger
}

type PipelineDeps struct {
	Metadata    MetadataFetcher
	Transcripts TranscriptFetcher
	Analyzer    ContentAnalyzer
	Studio      ThumbnailStudio
	Store       ResultInserter
	Monitor     *monitoring.Monitor
}

// NewPipeline builds a pipeline. A zero timeout disables the run deadline.
func NewPipeline(deps PipelineDeps, timeout time.Duration, log *logrus.Logger) *Pipeline {
	return &Pipeline{
		metadata:    deps.Metadata,
		transcripts: deps.Transcripts,
		analyzer:    deps.Analyzer,
		studio:      deps.Studio,
		store:       deps.Store,
		monitor:     deps.Monitor,
		timeout:     timeout,
		log:         log,
	}
}

// run carries the per-run state threaded through the steps.
type run struct {
	id     string
	req    Request
	stream *progress.Stream
	log    *logrus.Entry

	videoID    string
	video      *models.VideoInfo
	transcript string
	analysis   *models.ContentAnalysis
	thumbnails []models.ThumbnailProposal
	dropped    int
}

// Run executes one analysis. It publishes exactly one terminal event and
// closes stream before returning. The stored record is returned on success.
func (p *Pipeline) Run(ctx context.Context, req Request, stream *progress.Stream) (*models.AnalysisResult, error) {
	defer stream.Close()

	if req.ImageModel == "" {
		req.ImageModel = models.ImageModelNanoBanana
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	r := &run{
		id:     uuid.NewString(),
		req:    req,
		stream: stream,
	}
	r.log = p.log.WithField("run_id", r.id)

	startTime := time.Now()
	result, err := p.execute(ctx, r)
	duration := time.Since(startTime)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrTimedOut, err)
		}
		stream.Publish(progress.StepError, errorMessage(err), nil)
		if p.monitor != nil {
			p.monitor.RecordFailure(fmt.Errorf("run %s: %w", r.id, err), duration)
		}
		r.log.WithError(err).WithField("duration", duration.String()).Error("Analysis failed")
		return nil, err
	}

	stream.Publish(progress.StepComplete, "Analysis complete", result)
	if p.monitor != nil {
		summary := fmt.Sprintf("video %s, %d highlights, %d thumbnails", result.VideoID, len(result.Highlights), len(result.Thumbnails))
		p.monitor.RecordSuccess(summary, duration)
		if r.dropped > 0 {
			p.monitor.RecordPartialFailure(fmt.Errorf("run %s: %d thumbnail renders failed", r.id, r.dropped), duration)
		}
	}
	r.log.WithFields(logrus.Fields{
		"result_id": result.ID,
		"video_id":  result.VideoID,
		"duration":  duration.String(),
	}).Info("Analysis complete")
	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, r *run) (*models.AnalysisResult, error) {
	steps := []struct {
		step progress.Step
		fn   func(context.Context, *run) error
	}{
		{progress.StepValidate, p.validate},
		{progress.StepFetchInfo, p.fetchInfo},
		{progress.StepFetchTranscript, p.fetchTranscript},
		{progress.StepAnalyze, p.analyze},
		{progress.StepGenerateThumbnails, p.generateThumbnails},
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.log.WithField("step", s.step).Debug("Step started")
		if err := s.fn(ctx, r); err != nil {
			return nil, err
		}
	}

	// Nothing is written once the deadline has passed.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.save(ctx, r)
}

func (p *Pipeline) validate(ctx context.Context, r *run) error {
	r.stream.Publish(progress.StepValidate, "Validating URL...", nil)

	videoID, ok := youtube.ExtractVideoID(r.req.SourceURL)
	if !ok {
		return apperr.InvalidInput(fmt.Sprintf("unrecognized YouTube URL %q", r.req.SourceURL))
	}
	if !r.req.ImageModel.Valid() {
		return fmt.Errorf("%w: %w %q", apperr.ErrInvalidInput, ErrUnsupportedImageModel, r.req.ImageModel)
	}
	r.videoID = videoID
	r.log = r.log.WithField("video_id", videoID)
	return nil
}

func (p *Pipeline) fetchInfo(ctx context.Context, r *run) error {
	r.stream.Publish(progress.StepFetchInfo, "Fetching video info...", nil)

	video, err := p.metadata.FetchVideoInfo(ctx, r.videoID)
	if err != nil {
		return err
	}
	r.video = video
	r.stream.Publish(progress.StepFetchInfo, "Fetched video info", video)
	return nil
}

// fetchTranscript never fails the run: any error leaves the transcript empty.
func (p *Pipeline) fetchTranscript(ctx context.Context, r *run) error {
	r.stream.Publish(progress.StepFetchTranscript, "Fetching transcript...", nil)

	transcript, err := p.transcripts.FetchTranscript(ctx, r.videoID)
	if err != nil {
		r.log.WithError(err).Warn("Transcript unavailable, continuing with metadata only")
		transcript = ""
	}
	r.transcript = transcript

	if transcript != "" {
		r.stream.Publish(progress.StepFetchTranscript, "Fetched transcript", nil)
	} else {
		r.stream.Publish(progress.StepFetchTranscript, "No transcript found", nil)
	}
	return nil
}

func (p *Pipeline) analyze(ctx context.Context, r *run) error {
	r.stream.Publish(progress.StepAnalyze, "Analyzing content...", nil)

	analysis, err := p.analyzer.Analyze(ctx, r.video, r.transcript)
	if err != nil {
		return err
	}
	r.analysis = analysis
	r.stream.Publish(progress.StepAnalyze, "Analysis finished", analysis)
	return nil
}

func (p *Pipeline) generateThumbnails(ctx context.Context, r *run) error {
	r.stream.Publish(progress.StepGenerateThumbnails, "Generating thumbnails...", nil)

	ideas, err := p.studio.ProposeThumbnails(ctx, ai.ThumbnailBrief{
		Video:     r.video,
		Summary:   r.analysis.Summary,
		KeyTopics: r.analysis.KeyTopics,
	})
	if err != nil {
		return err
	}

	r.thumbnails = renderAll(ctx, p.studio, ideas, r.req.AuxiliaryImages, r.req.ImageModel, r.log)
	r.dropped = len(ideas) - len(r.thumbnails)

	r.stream.Publish(progress.StepGenerateThumbnails, "Generated thumbnails", map[string]any{
		"thumbnails": r.thumbnails,
	})
	return nil
}

func (p *Pipeline) save(ctx context.Context, r *run) (*models.AnalysisResult, error) {
	r.stream.Publish(progress.StepSave, "Saving results...", nil)

	record := models.NewAnalysisResult(uuid.NewString(), r.video, r.analysis, r.thumbnails)
	stored, err := p.store.Insert(ctx, record)
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// errorMessage is the text of the terminal error event. Configuration
// details stay in the server log.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, ErrTimedOut):
		return ErrTimedOut.Error()
	case errors.Is(err, apperr.ErrConfiguration):
		return "Server configuration error"
	case errors.Is(err, ErrUnsupportedImageModel):
		return "Unsupported image model"
	case errors.Is(err, apperr.ErrInvalidInput):
		return "Invalid YouTube URL"
	case apperr.IsStorage(err):
		return "Failed to save analysis result"
	default:
		return err.Error()
	}
}
