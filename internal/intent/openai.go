package intent

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"filter-agent/internal/common/config"
	"filter-agent/internal/common/errors"
	"filter-agent/internal/common/logger"
	"filter-agent/internal/models"
)

// chatClient is the slice of the OpenAI client the extractor needs.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIExtractor extracts filter intents with a single chat completion in
// JSON mode.
type OpenAIExtractor struct {
	client      chatClient
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	log         logger.Logger
}

func NewOpenAIExtractor(cfg config.OpenAIConfig, log logger.Logger) *OpenAIExtractor {
	return &OpenAIExtractor{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		maxTokens:   cfg.MaxTokens,
		timeout:     time.Duration(cfg.Timeout) * time.Millisecond,
		log:         log,
	}
}

func (e *OpenAIExtractor) Extract(ctx context.Context, query string, filters []models.FilterDefinition) ([]models.FilterIntent, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(query, filters),
			},
		},
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.NewIntentAPITimeoutError()
		}
		return nil, errors.NewIntentParsingFailedError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.NewIntentParsingFailedError(fmt.Errorf("completion returned no choices"))
	}

	intents, err := parseIntents(resp.Choices[0].Message.Content)
	if err != nil {
		e.log.Warn("Unparseable extraction response", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, errors.NewIntentParsingFailedError(err)
	}
	return intents, nil
}

type intentsEnvelope struct {
	Intents []models.FilterIntent `json:"intents"`
}

// parseIntents decodes the model's JSON reply and normalizes each intent:
// missing operators get defaults, unknown operators drop the intent.
func parseIntents(content string) ([]models.FilterIntent, error) {
	content = strings.TrimSpace(content)
	// Some models wrap JSON in a markdown fence despite instructions.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var envelope intentsEnvelope
	if err := json.Unmarshal([]byte(content), &envelope); err != nil {
		return nil, fmt.Errorf("decoding intents: %w", err)
	}

	out := make([]models.FilterIntent, 0, len(envelope.Intents))
	for _, intent := range envelope.Intents {
		intent.FilterReference = strings.TrimSpace(intent.FilterReference)
		if intent.FilterReference == "" {
			continue
		}
		if intent.ComparisonOperator == "" {
			intent.ComparisonOperator = models.OperatorEqual
		}
		if !intent.ComparisonOperator.IsValid() {
			continue
		}
		if intent.LogicalOperator != models.LogicalOr {
			intent.LogicalOperator = models.LogicalAnd
		}
		out = append(out, intent)
	}
	return out, nil
}
