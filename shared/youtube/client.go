package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"video-analyzer/internal/models"
	"video-analyzer/shared/apperr"
	"video-analyzer/shared/config"
)

const provider = "youtube"

var (
	videoIDPattern  = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/live/)([^&\n?#]+)`)
	durationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)
)

// ExtractVideoID returns the video id from a watch, short-link or live URL.
// The second result is false when no recognized shape matches.
func ExtractVideoID(rawURL string) (string, bool) {
	m := videoIDPattern.FindStringSubmatch(rawURL)
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// Client fetches video metadata from the YouTube Data API. The underlying
// service is built on first use so that a missing API key only fails the
// calls that need it.
type Client struct {
	config  *config.YouTubeConfig
	options []option.ClientOption
	log     *logrus.Logger

	mu      sync.Mutex
	service *youtube.Service
}

func NewClient(cfg *config.YouTubeConfig, log *logrus.Logger, opts ...option.ClientOption) *Client {
	return &Client{
		config:  cfg,
		options: opts,
		log:     log,
	}
}

func (c *Client) videos(ctx context.Context) (*youtube.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.service != nil {
		return c.service, nil
	}
	if c.config.APIKey == "" {
		return nil, apperr.Configuration("YouTube API key", "YOUTUBE_API_KEY")
	}

	opts := []option.ClientOption{option.WithAPIKey(c.config.APIKey)}
	if c.config.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.config.Endpoint))
	}
	opts = append(opts, c.options...)

	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	c.service = service
	return service, nil
}

// FetchVideoInfo looks up a single video by id.
func (c *Client) FetchVideoInfo(ctx context.Context, videoID string) (*models.VideoInfo, error) {
	service, err := c.videos(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := service.Videos.List([]string{"snippet", "contentDetails"}).
		Id(videoID).
		Context(ctx).
		Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return nil, apperr.Upstream(provider, fmt.Sprintf("videos.list returned status %d", apiErr.Code), err)
		}
		return nil, apperr.Upstream(provider, "videos.list request failed", err)
	}
	if resp.HTTPStatusCode != 0 && resp.HTTPStatusCode != http.StatusOK {
		return nil, apperr.Upstream(provider, fmt.Sprintf("videos.list returned status %d", resp.HTTPStatusCode), nil)
	}
	if len(resp.Items) == 0 {
		return nil, apperr.Upstream(provider, fmt.Sprintf("video %s not found", videoID), nil)
	}

	item := resp.Items[0]
	if item.Snippet == nil {
		return nil, apperr.Upstream(provider, "video response has no snippet", nil)
	}

	var rawDuration string
	if item.ContentDetails != nil {
		rawDuration = item.ContentDetails.Duration
	}
	seconds := parseDurationSeconds(rawDuration)

	info := &models.VideoInfo{
		VideoID:         videoID,
		Title:           item.Snippet.Title,
		Thumbnail:       bestThumbnail(item.Snippet.Thumbnails),
		Duration:        FormatDuration(seconds),
		DurationSeconds: seconds,
		ChannelName:     item.Snippet.ChannelTitle,
	}

	c.log.WithFields(logrus.Fields{
		"video_id": videoID,
		"duration": info.Duration,
	}).Debug("Fetched video info")

	return info, nil
}

func bestThumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, thumb := range []*youtube.Thumbnail{t.High, t.Medium, t.Default} {
		if thumb != nil && thumb.Url != "" {
			return thumb.Url
		}
	}
	return ""
}

// parseDurationSeconds converts an ISO 8601 duration such as "PT1H2M3S" or
// "P1DT2H". Anything it cannot read counts as zero.
func parseDurationSeconds(duration string) int {
	matches := durationPattern.FindStringSubmatch(duration)
	if matches == nil {
		return 0
	}

	var totalSeconds int
	for i, unit := range []int{86400, 3600, 60, 1} {
		if matches[i+1] == "" {
			continue
		}
		if n, err := strconv.Atoi(matches[i+1]); err == nil {
			totalSeconds += n * unit
		}
	}
	return totalSeconds
}

// FormatDuration renders seconds as "H:MM:SS", or "M:SS" under an hour.
func FormatDuration(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
