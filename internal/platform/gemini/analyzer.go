// Package gemini implements the text analysis lane on top of Google's
// Gemini API. It is the gated external collaborator: calls are rate
// limited, and the dispatch scheduler only routes work here while the
// health monitor reports the service online.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/lessonworks/analysis-api/internal/config"
	"github.com/lessonworks/analysis-api/internal/domain"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// fullAnalysisPrompt asks for the complete analysis document.
const fullAnalysisPrompt = `You are an educational content analyst.
Analyze the following lesson and respond with a single JSON object with
these fields: "summary" (2-4 sentences), "key_points" (array of strings),
"difficulty" (one of "beginner", "intermediate", "advanced") and
"estimated_minutes" (integer study time estimate).
Respond with JSON only, no prose.

Lesson title: {{.Title}}

Lesson content:
{{.Content}}`

// summaryPrompt asks for the lighter summary-only document.
const summaryPrompt = `You are an educational content analyst.
Summarize the following lesson in 2-4 sentences. Respond with a single
JSON object with one field: "summary". Respond with JSON only, no prose.

Lesson title: {{.Title}}

Lesson content:
{{.Content}}`

// Analyzer generates lesson analyses through the Gemini API.
type Analyzer struct {
	logger  *slog.Logger
	client  *genai.Client
	model   string
	limiter *rate.Limiter

	fullTemplate    *template.Template
	summaryTemplate *template.Template
}

// NewAnalyzer creates a new Gemini-backed analyzer. The limiter caps
// outbound calls at the configured requests per minute; the external
// service enforces its own quota and responds badly to bursts.
func NewAnalyzer(ctx context.Context, logger *slog.Logger, cfg config.InferenceConfig) (*Analyzer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}

	if cfg.ModelName == "" {
		return nil, errors.New("model name cannot be empty")
	}

	fullTemplate, err := template.New("full_analysis").Parse(fullAnalysisPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse full analysis template: %w", err)
	}

	summaryTemplate, err := template.New("summary").Parse(summaryPrompt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse summary template: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	perCall := time.Minute / time.Duration(cfg.RequestsPerMinute)

	return &Analyzer{
		logger:          logger,
		client:          client,
		model:           cfg.ModelName,
		limiter:         rate.NewLimiter(rate.Every(perCall), 1),
		fullTemplate:    fullTemplate,
		summaryTemplate: summaryTemplate,
	}, nil
}

// FullAnalysis produces the complete analysis document for a lesson.
func (a *Analyzer) FullAnalysis(
	ctx context.Context,
	lesson *domain.LessonContent,
) (*domain.AnalysisContent, error) {
	parsed, err := a.generate(ctx, a.fullTemplate, lesson)
	if err != nil {
		return nil, err
	}

	if parsed.Summary == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrInvalidResponse)
	}

	return &domain.AnalysisContent{
		Summary:          parsed.Summary,
		KeyPoints:        parsed.KeyPoints,
		Difficulty:       normalizeDifficulty(parsed.Difficulty),
		EstimatedMinutes: parsed.EstimatedMinutes,
	}, nil
}

// Summarize produces the summary-only document for a lesson.
func (a *Analyzer) Summarize(
	ctx context.Context,
	lesson *domain.LessonContent,
) (*domain.AnalysisContent, error) {
	parsed, err := a.generate(ctx, a.summaryTemplate, lesson)
	if err != nil {
		return nil, err
	}

	if parsed.Summary == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrInvalidResponse)
	}

	return &domain.AnalysisContent{Summary: parsed.Summary}, nil
}

// generate renders the prompt, waits for rate-limit headroom, calls the
// model, and parses the JSON payload out of the response.
func (a *Analyzer) generate(
	ctx context.Context,
	tmpl *template.Template,
	lesson *domain.LessonContent,
) (*analysisSchema, error) {
	if lesson == nil || lesson.Content == "" {
		return nil, ErrEmptyLesson
	}

	prompt, err := a.buildPrompt(tmpl, lesson)
	if err != nil {
		return nil, err
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	a.logger.DebugContext(ctx, "calling inference service",
		"model", a.model,
		"template", tmpl.Name(),
		"lesson_id", lesson.ID,
		"prompt_length", len(prompt))

	resp, err := a.client.Models.GenerateContent(ctx, a.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("inference call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: no content generated", ErrInvalidResponse)
	}

	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, ErrContentBlocked
	}

	text := resp.Text()
	parsed, err := parseAnalysisJSON(text)
	if err != nil {
		return nil, err
	}

	a.logger.DebugContext(ctx, "inference call succeeded",
		"lesson_id", lesson.ID,
		"response_length", len(text))
	return parsed, nil
}

// buildPrompt renders the template with the lesson fields.
func (a *Analyzer) buildPrompt(tmpl *template.Template, lesson *domain.LessonContent) (string, error) {
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, promptData{
		Title:   lesson.Title,
		Content: lesson.Content,
	})
	if err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}

// parseAnalysisJSON extracts the JSON document from the model output.
// Models sometimes wrap JSON in a markdown fence despite instructions.
func parseAnalysisJSON(text string) (*analysisSchema, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var parsed analysisSchema
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return &parsed, nil
}

// normalizeDifficulty maps free-form model output onto the known levels,
// defaulting to intermediate when the model invents something else.
func normalizeDifficulty(difficulty string) string {
	switch strings.ToLower(strings.TrimSpace(difficulty)) {
	case "beginner", "intermediate", "advanced":
		return strings.ToLower(strings.TrimSpace(difficulty))
	case "":
		return ""
	default:
		return "intermediate"
	}
}
