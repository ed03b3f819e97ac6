package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"receiptbook/internal"
	"receiptbook/internal/config"
	"receiptbook/internal/document"
	"receiptbook/internal/llm"
)

// VisionStrategy sends the document as an image to an OpenAI-compatible multimodal model.
type VisionStrategy struct {
	chat        llm.Chatter
	model       string
	temperature float64
	maxTokens   int
	log         zerolog.Logger
}

func NewVisionStrategy(chat llm.Chatter, cfg config.Config, log zerolog.Logger) *VisionStrategy {
	return &VisionStrategy{
		chat:        chat,
		model:       cfg.LLMVisionModel,
		temperature: cfg.LLMTemperature,
		maxTokens:   cfg.LLMMaxTokens,
		log:         log.With().Str("strategy", string(internal.StrategyVision)).Logger(),
	}
}

func (s *VisionStrategy) Name() internal.Strategy { return internal.StrategyVision }

func (s *VisionStrategy) Extract(ctx context.Context, doc internal.Document) (internal.RawFields, error) {
	img, err := document.PrepareImage(doc.Content, doc.Ext, doc.ContentType)
	if err != nil {
		return nil, err
	}

	content, err := s.chat.Chat(ctx, llm.ChatRequest{
		Model:       s.model,
		System:      systemPrompt,
		Prompt:      visionPrompt(),
		Image:       &llm.ImageInput{Data: img.Data, MIMEType: img.MIMEType},
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}
	return decodeFields(content, s.log)
}

type geminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiVision is the vision strategy backed by Google Gemini.
type GeminiVision struct {
	models      geminiModels
	model       string
	temperature float32
	timeout     time.Duration
	log         zerolog.Logger
}

func NewGeminiVision(ctx context.Context, cfg config.Config, log zerolog.Logger) (*GeminiVision, error) {
	if err := cfg.Require("GEMINI_API_KEY", cfg.GeminiAPIKey); err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiVision(client.Models, cfg, log), nil
}

func newGeminiVision(models geminiModels, cfg config.Config, log zerolog.Logger) *GeminiVision {
	return &GeminiVision{
		models:      models,
		model:       cfg.GeminiModel,
		temperature: float32(cfg.LLMTemperature),
		timeout:     time.Duration(cfg.LLMTimeoutMs) * time.Millisecond,
		log:         log.With().Str("strategy", string(internal.StrategyVision)).Str("provider", "gemini").Logger(),
	}
}

func (g *GeminiVision) Name() internal.Strategy { return internal.StrategyVision }

func (g *GeminiVision) Extract(ctx context.Context, doc internal.Document) (internal.RawFields, error) {
	img, err := document.PrepareImage(doc.Content, doc.Ext, doc.ContentType)
	if err != nil {
		return nil, err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: systemPrompt + "\n\n" + visionPrompt()},
				{InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: img.Data}},
			},
		},
	}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(g.temperature),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, ErrEmptyResponse
	}
	return decodeFields(text, g.log)
}
