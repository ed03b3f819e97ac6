package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"receiptbook/internal/config"
)

// Chatter is the slice of a chat-completions client the extraction strategies need.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

type Client struct {
	baseURL     string
	apiKey      string
	maxAttempts int
	httpClient  *http.Client
	limiter     *RateLimiter
	log         zerolog.Logger
}

type ChatRequest struct {
	Model       string
	System      string
	Prompt      string
	Image       *ImageInput
	Temperature float64
	MaxTokens   int
	JSON        bool
}

type ImageInput struct {
	Data     []byte
	MIMEType string
}

// DataURL is the inline form the chat-completions image_url part accepts.
func (i ImageInput) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatBody struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
	attempts := cfg.LLMMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	return &Client{
		baseURL:     cfg.LLMBaseURL,
		apiKey:      cfg.LLMAPIKey,
		maxAttempts: attempts,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.LLMTimeoutMs) * time.Millisecond},
		limiter:     NewRateLimiter(cfg.LLMRateLimitRPS),
		log:         log.With().Str("component", "llm").Logger(),
	}
}

// Chat sends one completion request and returns the assistant content.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", errors.New("missing OPENAI_API_KEY")
	}

	rid := uuid.New().String()
	start := time.Now()
	log := c.log.With().Str("req_id", rid).Str("model", req.Model).Logger()

	blob, err := json.Marshal(buildBody(req))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	endpoint := strings.TrimRight(c.baseURL, "/") + "/chat/completions"

	log.Debug().Int("content_length", len(blob)).Bool("vision", req.Image != nil).Msg("llm.chat.start")

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return "", err
		}

		body, status, err := c.post(ctx, endpoint, blob)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil || attempt == c.maxAttempts {
				break
			}
			if err := waitBackoff(ctx, attempt); err != nil {
				break
			}
			continue
		}
		if status < 200 || status >= 300 {
			lastErr = fmt.Errorf("llm status %d: %s", status, truncateBody(body))
			if isRetryableStatus(status) && attempt < c.maxAttempts {
				if err := waitBackoff(ctx, attempt); err != nil {
					break
				}
				continue
			}
			break
		}

		var cc chatResponse
		if err := json.Unmarshal(body, &cc); err != nil {
			log.Error().Err(err).Int("raw_bytes", len(body)).Msg("llm.chat.decode_error")
			return "", fmt.Errorf("decode chat response: %w", err)
		}
		if len(cc.Choices) == 0 {
			return "", errors.New("no choices in chat response")
		}
		content := strings.TrimSpace(cc.Choices[0].Message.Content)
		log.Info().Int("attempt", attempt).Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("llm.chat.ok")
		return content, nil
	}

	if lastErr == nil {
		lastErr = errors.New("llm request failed")
	}
	log.Error().Err(lastErr).Int64("elapsed_ms", time.Since(start).Milliseconds()).Msg("llm.chat.failed")
	return "", lastErr
}

// waitBackoff sleeps 250ms doubling per attempt plus jitter, or until ctx is done.
func waitBackoff(ctx context.Context, attempt int) error {
	backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
	timer := time.NewTimer(backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) post(ctx context.Context, endpoint string, blob []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(blob))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("llm http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func buildBody(req ChatRequest) chatBody {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	if req.Image != nil {
		messages = append(messages, chatMessage{Role: "user", Content: []contentPart{
			{Type: "text", Text: req.Prompt},
			{Type: "image_url", ImageURL: &imageURL{URL: req.Image.DataURL()}},
		}})
	} else {
		messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})
	}

	body := chatBody{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		body.ResponseFormat = map[string]any{"type": "json_object"}
	}
	return body
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncateBody(body []byte) string {
	const max = 300
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
