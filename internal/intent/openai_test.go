package intent

import (
	"context"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filter-agent/internal/common/errors"
	"filter-agent/internal/common/logger"
	"filter-agent/internal/models"
)

type stubChatClient struct {
	content string
	err     error
	gotReq  openai.ChatCompletionRequest
}

func (s *stubChatClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	s.gotReq = req
	if s.err != nil {
		return openai.ChatCompletionResponse{}, s.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: s.content}},
		},
	}, nil
}

func newTestExtractor(stub *stubChatClient) *OpenAIExtractor {
	return &OpenAIExtractor{
		client:    stub,
		model:     openai.GPT4oMini,
		maxTokens: 500,
		timeout:   5 * time.Second,
		log:       logger.Nop(),
	}
}

func catalogFilters() []models.FilterDefinition {
	return []models.FilterDefinition{
		{Name: "companyType", Label: "Company Type", SourceType: models.SourceTypeLens},
		{Name: "status", Label: "Account Status", SourceType: models.SourceTypeLens},
	}
}

func TestExtractSuccess(t *testing.T) {
	stub := &stubChatClient{content: `{
		"intents": [
			{"filterReference": "company type", "desiredValue": "governmental", "comparisonOperator": "equal", "logicalOperator": "and"},
			{"filterReference": "status", "desiredValue": "active", "comparisonOperator": "notEqual", "logicalOperator": "or"}
		]
	}`}
	e := newTestExtractor(stub)

	intents, err := e.Extract(context.Background(), "governmental companies that are not active", catalogFilters())
	require.NoError(t, err)
	require.Len(t, intents, 2)
	assert.Equal(t, "company type", intents[0].FilterReference)
	assert.Equal(t, models.OperatorEqual, intents[0].ComparisonOperator)
	assert.Equal(t, models.OperatorNotEqual, intents[1].ComparisonOperator)
	assert.Equal(t, models.LogicalOr, intents[1].LogicalOperator)

	// Prompt carries the catalog and the raw query.
	prompt := stub.gotReq.Messages[0].Content
	assert.Contains(t, prompt, "name: companyType, label: Company Type")
	assert.Contains(t, prompt, "governmental companies that are not active")
	require.NotNil(t, stub.gotReq.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, stub.gotReq.ResponseFormat.Type)
}

func TestExtractEmptyIntents(t *testing.T) {
	stub := &stubChatClient{content: `{"intents": []}`}
	e := newTestExtractor(stub)

	intents, err := e.Extract(context.Background(), "hello there", catalogFilters())
	require.NoError(t, err)
	assert.Empty(t, intents)
}

func TestExtractAPIError(t *testing.T) {
	stub := &stubChatClient{err: assert.AnError}
	e := newTestExtractor(stub)

	_, err := e.Extract(context.Background(), "anything", catalogFilters())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeIntentParsingFailed))
}

func TestExtractTimeout(t *testing.T) {
	stub := &stubChatClient{err: context.DeadlineExceeded}
	e := newTestExtractor(stub)

	_, err := e.Extract(context.Background(), "anything", catalogFilters())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeIntentAPITimeout))
}

func TestExtractMalformedResponse(t *testing.T) {
	stub := &stubChatClient{content: "I could not find any filters, sorry!"}
	e := newTestExtractor(stub)

	_, err := e.Extract(context.Background(), "anything", catalogFilters())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeIntentParsingFailed))
}

func TestParseIntents(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []models.FilterIntent
		wantErr bool
	}{
		{
			name:    "markdown fence stripped",
			content: "```json\n{\"intents\":[{\"filterReference\":\"status\",\"desiredValue\":\"active\"}]}\n```",
			want: []models.FilterIntent{
				{FilterReference: "status", DesiredValue: "active", ComparisonOperator: models.OperatorEqual, LogicalOperator: models.LogicalAnd},
			},
		},
		{
			name:    "missing operators defaulted",
			content: `{"intents":[{"filterReference":"region","desiredValue":"emea"}]}`,
			want: []models.FilterIntent{
				{FilterReference: "region", DesiredValue: "emea", ComparisonOperator: models.OperatorEqual, LogicalOperator: models.LogicalAnd},
			},
		},
		{
			name:    "unknown operator drops the intent",
			content: `{"intents":[{"filterReference":"region","desiredValue":"emea","comparisonOperator":"between"}]}`,
			want:    []models.FilterIntent{},
		},
		{
			name:    "blank reference dropped",
			content: `{"intents":[{"filterReference":"  ","desiredValue":"emea"}]}`,
			want:    []models.FilterIntent{},
		},
		{
			name:    "not json",
			content: "no filters here",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIntents(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
