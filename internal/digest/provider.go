package digest

import (
	"context"
	"errors"
	"fmt"

	"chatharvest/internal/config"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// NewCompleter builds the completer for the configured provider. DeepSeek speaks the
// OpenAI chat-completions protocol and shares its client.
func NewCompleter(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (Completer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIKey == "" {
		return nil, errors.New("LLM API key is required")
	}
	switch cfg.Provider {
	case config.ProviderDeepSeek, config.ProviderOpenAI, "":
		return newChatCompleter(cfg, logger), nil
	case config.ProviderGemini:
		return newGeminiCompleter(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// chatCompleter talks to an OpenAI-compatible chat-completions endpoint.
type chatCompleter struct {
	client  openai.Client
	model   string
	baseURL string // empty means the SDK default
	logger  *zap.Logger
}

func newChatCompleter(cfg config.LLMConfig, logger *zap.Logger, extra ...option.RequestOption) *chatCompleter {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.GetTimeout()),
	}
	base := cfg.GetBaseURL()
	if base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	opts = append(opts, extra...)
	return &chatCompleter{
		client:  openai.NewClient(opts...),
		model:   cfg.GetModel(),
		baseURL: base,
		logger:  logger,
	}
}

func (c *chatCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	c.logger.Debug("chat completion", zap.String("model", c.model), zap.Int("prompt_len", len(prompt)))

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion (%s): %w", c.model, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion (%s): no choices", c.model)
	}
	return resp.Choices[0].Message.Content, nil
}

// geminiCompleter talks to the Gemini API.
type geminiCompleter struct {
	client  *genai.Client
	model   string
	baseURL string // empty means the SDK default
	logger  *zap.Logger
}

func newGeminiCompleter(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (*geminiCompleter, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &geminiCompleter{client: client, model: cfg.GetModel(), baseURL: cfg.BaseURL, logger: logger}, nil
}

func (g *geminiCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	g.logger.Debug("gemini completion", zap.String("model", g.model), zap.Int("prompt_len", len(prompt)))

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	gc := &genai.GenerateContentConfig{}
	if system != "" {
		gc.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, gc)
	if err != nil {
		return "", fmt.Errorf("gemini completion (%s): %w", g.model, err)
	}
	if result == nil {
		return "", fmt.Errorf("gemini completion (%s): empty response", g.model)
	}
	return result.Text(), nil
}
