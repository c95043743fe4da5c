package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

const defaultModel = openai.ChatModelGPT4o

// OpenAIComposer composes digest threads with the OpenAI chat completions API.
type OpenAIComposer struct {
	client *openai.Client
	model  openai.ChatModel
	logger *zap.Logger
}

func NewOpenAIComposer(apiKey, model string, logger *zap.Logger, opts ...option.RequestOption) *OpenAIComposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(opts...)

	chatModel := defaultModel
	if model != "" {
		chatModel = openai.ChatModel(model)
	}
	return &OpenAIComposer{
		client: &client,
		model:  chatModel,
		logger: logger,
	}
}

func (c *OpenAIComposer) WriteThread(ctx context.Context, summaries map[string]string, startDate, endDate string) (string, error) {
	userPrompt := buildThreadPrompt(summaries, startDate, endDate)

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(threadSystemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}

	thread := strings.TrimSpace(resp.Choices[0].Message.Content)
	if thread == "" {
		return "", fmt.Errorf("empty thread from openai")
	}

	c.logger.Info("thread composed",
		zap.String("model", string(c.model)),
		zap.String("prompt_version", promptVersion),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
	)
	return thread, nil
}
