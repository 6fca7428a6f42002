package models

import "time"

// ImageModel selects the image-generation model used for thumbnail renders.
type ImageModel string

const (
	ImageModelNanoBanana    ImageModel = "nano-banana"
	ImageModelNanoBananaPro ImageModel = "nano-banana-pro"
)

// Valid reports whether m is one of the supported image models.
func (m ImageModel) Valid() bool {
	return m == ImageModelNanoBanana || m == ImageModelNanoBananaPro
}

type VideoInfo struct {
	VideoID         string `json:"videoId"`
	Title           string `json:"title"`
	Thumbnail       string `json:"thumbnail"`
	Duration        string `json:"duration"`
	DurationSeconds int    `json:"-"`
	ChannelName     string `json:"channelName"`
}

// HighlightSegment is a clip-worthy scene. Timestamps are passed through
// exactly as the analysis provider returned them.
type HighlightSegment struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	StartSeconds int    `json:"startSeconds"`
	EndSeconds   int    `json:"endSeconds"`
	Reason       string `json:"reason"`
}

// ThumbnailIdea is a thumbnail concept before an image has been rendered.
type ThumbnailIdea struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DesignNotes string `json:"designNotes"`
	CTRReason   string `json:"ctrReason"`
	Prompt      string `json:"prompt"`
}

type ThumbnailProposal struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	DesignNotes string `json:"designNotes"`
	CTRReason   string `json:"ctrReason"`
	ModelUsed   string `json:"modelUsed,omitempty"`
}

// ContentAnalysis is what the analysis provider produces for one video.
type ContentAnalysis struct {
	Summary    string             `json:"summary"`
	KeyTopics  []string           `json:"keyTopics"`
	Highlights []HighlightSegment `json:"highlights"`
}

// AnalysisResult is the persisted aggregate of one successful pipeline run.
// Highlights and thumbnails belong to the result and have no lifecycle of
// their own.
type AnalysisResult struct {
	ID             string              `json:"id"`
	VideoID        string              `json:"videoId"`
	VideoTitle     string              `json:"videoTitle"`
	VideoThumbnail string              `json:"videoThumbnail"`
	VideoDuration  string              `json:"videoDuration"`
	ChannelName    string              `json:"channelName"`
	Summary        string              `json:"summary"`
	KeyTopics      []string            `json:"keyTopics"`
	Highlights     []HighlightSegment  `json:"highlights"`
	Thumbnails     []ThumbnailProposal `json:"thumbnails"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// NewAnalysisResult assembles a result from the pipeline outputs. CreatedAt
// is left zero; the store assigns it on insert.
func NewAnalysisResult(id string, info *VideoInfo, analysis *ContentAnalysis, thumbnails []ThumbnailProposal) *AnalysisResult {
	r := &AnalysisResult{
		ID:             id,
		VideoID:        info.VideoID,
		VideoTitle:     info.Title,
		VideoThumbnail: info.Thumbnail,
		VideoDuration:  info.Duration,
		ChannelName:    info.ChannelName,
		Summary:        analysis.Summary,
		KeyTopics:      analysis.KeyTopics,
		Highlights:     analysis.Highlights,
		Thumbnails:     thumbnails,
	}
	r.Normalize()
	return r
}

// Normalize replaces nil slices so the JSON form always carries arrays.
func (r *AnalysisResult) Normalize() {
	if r.KeyTopics == nil {
		r.KeyTopics = []string{}
	}
	if r.Highlights == nil {
		r.Highlights = []HighlightSegment{}
	}
	if r.Thumbnails == nil {
		r.Thumbnails = []ThumbnailProposal{}
	}
}

// Clone returns a deep copy so callers cannot mutate a stored record.
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	c := *r
	c.KeyTopics = append([]string(nil), r.KeyTopics...)
	c.Highlights = append([]HighlightSegment(nil), r.Highlights...)
	c.Thumbnails = append([]ThumbnailProposal(nil), r.Thumbnails...)
	c.Normalize()
	return &c
}
