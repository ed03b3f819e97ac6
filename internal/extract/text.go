package extract

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"receiptbook/internal"
	"receiptbook/internal/config"
	"receiptbook/internal/llm"
)

type TextStrategy struct {
	chat        llm.Chatter
	model       string
	temperature float64
	maxTokens   int
	log         zerolog.Logger
}

func NewTextStrategy(chat llm.Chatter, cfg config.Config, log zerolog.Logger) *TextStrategy {
	return &TextStrategy{
		chat:        chat,
		model:       cfg.LLMTextModel,
		temperature: cfg.LLMTemperature,
		maxTokens:   cfg.LLMMaxTokens,
		log:         log.With().Str("strategy", string(internal.StrategyText)).Logger(),
	}
}

func (s *TextStrategy) Name() internal.Strategy { return internal.StrategyText }

func (s *TextStrategy) Extract(ctx context.Context, doc internal.Document) (internal.RawFields, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, ErrNoText
	}

	content, err := s.chat.Chat(ctx, llm.ChatRequest{
		Model:       s.model,
		System:      systemPrompt,
		Prompt:      textPrompt(doc.Text),
		Temperature: s.temperature,
		MaxTokens:   s.maxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}
	return decodeFields(content, s.log)
}

func decodeFields(content string, log zerolog.Logger) (internal.RawFields, error) {
	raw, err := parseRawFields(content)
	if err != nil {
		log.Warn().Err(err).Int("content_len", len(content)).Msg("extract.parse_failed")
		return nil, err
	}
	if err := checkDrift(content); err != nil {
		log.Warn().Err(err).Msg("extract.schema_drift")
	}
	return raw, nil
}
