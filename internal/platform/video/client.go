// Package video implements the video analysis lane. It talks to a
// transcript extraction pipeline over HTTP and does not depend on the
// gated inference service, which is why the scheduler dispatches video
// tasks even while that service is offline.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lessonworks/analysis-api/internal/config"
	"github.com/lessonworks/analysis-api/internal/domain"
)

// ErrNoVideo indicates the lesson has no video material to analyze.
var ErrNoVideo = errors.New("lesson has no video material")

// analyzeRequest is the pipeline's request payload.
type analyzeRequest struct {
	LessonID string `json:"lesson_id"`
	VideoURL string `json:"video_url"`
}

// analyzeResponse is the pipeline's response payload.
type analyzeResponse struct {
	Transcript string   `json:"transcript"`
	KeyPoints  []string `json:"key_points"`
}

// Client calls the video analysis pipeline.
type Client struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewClient creates a video pipeline client with a bounded per-call timeout.
func NewClient(cfg config.VideoConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint: cfg.Endpoint,
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		logger:   logger.With(slog.String("component", "video_client")),
	}
}

// AnalyzeVideo extracts the transcript and key points for a lesson's video.
func (c *Client) AnalyzeVideo(
	ctx context.Context,
	lesson *domain.LessonContent,
) (*domain.AnalysisContent, error) {
	if lesson == nil || !lesson.HasVideo() {
		return nil, ErrNoVideo
	}

	body, err := json.Marshal(analyzeRequest{
		LessonID: lesson.ID.String(),
		VideoURL: lesson.VideoURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal video request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build video request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.DebugContext(ctx, "calling video pipeline",
		"lesson_id", lesson.ID,
		"video_url", lesson.VideoURL)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("video pipeline call failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("video pipeline returned status %d", resp.StatusCode)
	}

	var parsed analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode video pipeline response: %w", err)
	}

	if parsed.Transcript == "" && len(parsed.KeyPoints) == 0 {
		return nil, errors.New("video pipeline returned empty analysis")
	}

	return &domain.AnalysisContent{
		Transcript: parsed.Transcript,
		KeyPoints:  parsed.KeyPoints,
	}, nil
}
