package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("redline.llm.ollama")

type OllamaConfig struct {
	BaseURL string
	Model   string
}

// OllamaClient talks to a local Ollama server through langchaingo.
type OllamaClient struct {
	llm   *ollama.LLM
	model string
}

func NewOllamaClient(cfg OllamaConfig) (*OllamaClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("OLLAMA_URL not set")
	}
	model := cfg.Model
	if model == "" {
		slog.Warn("OLLAMA_MODEL not set, default gpt-oss")
		model = "gpt-oss"
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")

	llm, err := ollama.New(ollama.WithServerURL(baseURL), ollama.WithModel(model))
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}
	slog.Info("Initializing Ollama client", "base_url", baseURL, "model", model)
	return &OllamaClient{llm: llm, model: model}, nil
}

// Generate implements the LLMClient interface
func (o *OllamaClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "OllamaClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model), attribute.Bool("llm.json_mode", params.JSONMode))

	system := params.System
	if system == "" {
		system = "You are a helpful assistant."
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	var opts []llms.CallOption
	if params.Temperature != nil {
		opts = append(opts, llms.WithTemperature(float64(*params.Temperature)))
	} else {
		opts = append(opts, llms.WithTemperature(0.2))
	}
	if params.MaxTokens != nil {
		opts = append(opts, llms.WithMaxTokens(*params.MaxTokens))
	}
	if params.JSONMode {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := o.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Error("Ollama API call failed", "error", err)
		return "", fmt.Errorf("Ollama API call failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Content == "" {
		span.SetStatus(codes.Error, ErrEmptyResponse.Error())
		return "", ErrEmptyResponse
	}
	slog.Debug("Received response from Ollama")
	return resp.Choices[0].Content, nil
}

var _ LLMClient = (*OllamaClient)(nil)
