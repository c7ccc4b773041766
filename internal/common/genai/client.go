// Package genai is the HTTP client for the generative-AI backend that
// issues questions and writes plan content.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bizplan-workers/internal/common/config"
	apperrors "bizplan-workers/internal/common/errors"
	httpclient "bizplan-workers/internal/common/http"
	"bizplan-workers/internal/common/logger"
	"bizplan-workers/internal/common/validation"
	"bizplan-workers/internal/models"
)

const (
	OpFirstQuestion = "first_question"
	OpNextQuestion  = "next_question"
	OpTitle         = "title"
	OpSections      = "sections"
	OpSuggestions   = "suggestions"
)

var endpoints = map[string]string{
	OpFirstQuestion: "/api/ai/questions/first",
	OpNextQuestion:  "/api/ai/questions/next",
	OpTitle:         "/api/ai/plans/title",
	OpSections:      "/api/ai/plans/sections",
	OpSuggestions:   "/api/ai/plans/suggestions",
}

type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
	MaxTokens   int
	Temperature float64
}

// ConfigFrom converts the application config section.
func ConfigFrom(c config.GenAIConfig) Config {
	return Config{
		BaseURL:     strings.TrimRight(c.BaseURL, "/"),
		APIKey:      c.APIKey,
		Timeout:     config.GetDuration(c.Timeout),
		MaxRetries:  c.MaxRetries,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
}

type Client struct {
	config    Config
	client    *httpclient.Client
	validator *validation.Validator
	logger    logger.Logger
}

var _ models.AIBackend = (*Client)(nil)

func NewClient(cfg Config, log logger.Logger) *Client {
	return &Client{
		config: cfg,
		// per-call deadlines come from the context
		client:    httpclient.NewClient(0),
		validator: validation.NewAIResponseValidator(),
		logger:    log.WithFields(map[string]interface{}{"component": "genai"}),
	}
}

type questionPayload struct {
	Text     string   `json:"text"`
	Type     string   `json:"type"`
	Keywords []string `json:"keywords"`
}

type questionResponse struct {
	Question *questionPayload `json:"question"`
	Done     bool             `json:"done"`
}

func (q *questionPayload) toModel() *models.Question {
	kind := models.QuestionKindText
	switch q.Type {
	case "numeric", "number":
		kind = models.QuestionKindNumeric
	}
	return &models.Question{
		Text:     strings.TrimSpace(q.Text),
		Kind:     kind,
		Keywords: q.Keywords,
	}
}

func (c *Client) FirstQuestion(ctx context.Context, idea, projectName, projectDescription string) (*models.Question, error) {
	body := map[string]interface{}{
		"businessIdea":       idea,
		"projectName":        projectName,
		"projectDescription": projectDescription,
	}

	var out questionResponse
	if err := c.call(ctx, OpFirstQuestion, body, validation.SchemaQuestion, &out); err != nil {
		return nil, err
	}
	if out.Question == nil {
		return nil, apperrors.NewUpstreamGenerationError(OpFirstQuestion, fmt.Errorf("response carries no question"))
	}
	return out.Question.toModel(), nil
}

// NextQuestion returns nil without error when the backend has no further
// question.
func (c *Client) NextQuestion(ctx context.Context, turns []models.QuestionAnswerTurn, idea string, turnCount int) (*models.Question, error) {
	body := map[string]interface{}{
		"businessIdea": idea,
		"answers":      turns,
		"turnCount":    turnCount,
	}

	var out questionResponse
	if err := c.call(ctx, OpNextQuestion, body, validation.SchemaQuestion, &out); err != nil {
		return nil, err
	}
	if out.Done || out.Question == nil {
		return nil, nil
	}
	return out.Question.toModel(), nil
}

func (c *Client) Title(ctx context.Context, req models.GenerationRequest) (string, error) {
	var out struct {
		Title string `json:"title"`
	}
	if err := c.call(ctx, OpTitle, req, validation.SchemaTitle, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Title), nil
}

// Sections returns either all six sections or an error.
func (c *Client) Sections(ctx context.Context, req models.GenerationRequest) (models.SectionSet, error) {
	var out struct {
		Sections map[string]string `json:"sections"`
	}
	if err := c.call(ctx, OpSections, req, validation.SchemaSections, &out); err != nil {
		return nil, err
	}

	sections := make(models.SectionSet, len(models.SectionKeys))
	for _, key := range models.SectionKeys {
		sections[key] = out.Sections[key]
	}
	if !sections.Complete() {
		return nil, apperrors.NewUpstreamGenerationError(OpSections, fmt.Errorf("incomplete section set"))
	}
	return sections, nil
}

func (c *Client) Suggestions(ctx context.Context, req models.GenerationRequest) ([]models.SuggestionItem, error) {
	var out struct {
		Suggestions []models.SuggestionItem `json:"suggestions"`
	}
	if err := c.call(ctx, OpSuggestions, req, validation.SchemaSuggestions, &out); err != nil {
		return nil, err
	}

	items := make([]models.SuggestionItem, 0, len(out.Suggestions))
	for _, s := range out.Suggestions {
		items = append(items, s.Normalized())
	}
	return items, nil
}

// call posts payload to the endpoint of op, validates the response body
// against schema and decodes it into out.
func (c *Client) call(ctx context.Context, op string, payload interface{}, schema string, out interface{}) error {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(map[string]interface{}{
		"input":       payload,
		"max_tokens":  c.config.MaxTokens,
		"temperature": c.config.Temperature,
	})
	if err != nil {
		return apperrors.NewUpstreamGenerationError(op, err)
	}

	raw, err := c.post(ctx, op, body)
	if err != nil {
		return err
	}

	result, err := c.validator.ValidateJSON(schema, raw)
	if err != nil {
		return apperrors.NewUpstreamGenerationError(op, err)
	}
	if !result.Valid {
		c.logger.Warn("malformed AI response", map[string]interface{}{
			"operation": op,
			"errors":    result.Error(),
		})
		return apperrors.NewUpstreamGenerationError(op, fmt.Errorf("malformed response: %s", result.Error()))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.NewUpstreamGenerationError(op, fmt.Errorf("decode error: %w", err))
	}
	return nil
}

func (c *Client) post(ctx context.Context, op string, body []byte) ([]byte, error) {
	url := c.config.BaseURL + endpoints[op]
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, c.contextError(ctx, op)
			}
		}

		raw, retry, err := c.attempt(ctx, url, body)
		if err == nil {
			return raw, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, c.contextError(ctx, op)
		}
		if !retry {
			break
		}
		c.logger.Debug("retrying AI backend call", map[string]interface{}{
			"operation": op,
			"attempt":   attempt + 1,
			"error":     err,
		})
	}

	return nil, apperrors.NewUpstreamGenerationError(op, lastErr)
}

// attempt performs one request. retry reports whether a failure is worth
// another attempt.
func (c *Client) attempt(ctx context.Context, url string, body []byte) (raw []byte, retry bool, err error) {
	headers := map[string]string{}
	if c.config.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.config.APIKey
	}

	resp, err := c.client.PostJSON(ctx, url, body, headers)
	if err != nil {
		return nil, true, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.Retryable(), fmt.Errorf("status %d", resp.StatusCode)
	}
	return resp.Body, false, nil
}

func (c *Client) contextError(ctx context.Context, op string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return apperrors.NewUpstreamTimeoutError(op)
	}
	return apperrors.NewUpstreamGenerationError(op, ctx.Err())
}
