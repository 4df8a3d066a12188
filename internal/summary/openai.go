package summary

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/sashabaranov/go-openai"
)

// Промт по умолчанию, если в конфиге его нет
const DefaultPromt = "\n\nResuma a newsletter acima em até três frases, em português."

var ErrNoChoices = errors.New("openai returned no choices")

// Клиент openai, которого нам достаточно
type completer interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Генерирует краткое содержание newsletter для поста в канал
type OpenAISummarizer struct {
	client completer
	// С его помощью просим gpt генерить summary
	promt string
	// Без ключа summarizer выключен и возвращает пустую строку
	enabled bool
	mu      sync.Mutex
}

func NewOpenAISummarizer(apiKey string, promt string) *OpenAISummarizer {
	if promt == "" {
		promt = DefaultPromt
	}

	s := &OpenAISummarizer{
		client:  openai.NewClient(apiKey),
		promt:   promt,
		enabled: apiKey != "",
	}

	log.Printf("[INFO] openai summarizer enabled: %v", s.enabled)

	return s
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.enabled || strings.TrimSpace(text) == "" {
		return "", nil
	}

	request := openai.ChatCompletionRequest{
		Model: openai.GPT3Dot5Turbo,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: fmt.Sprintf("%s%s", text, s.promt),
			},
		},
		MaxTokens:   256,
		Temperature: 0.7,
		TopP:        1,
	}

	resp, err := s.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return completeSentences(resp.Choices[0].Message.Content), nil
}

// Ответ обрезается по MaxTokens, поэтому отбрасываем недописанное предложение
func completeSentences(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasSuffix(raw, ".") {
		return raw
	}

	sentences := strings.Split(raw, ".")
	if len(sentences) == 1 {
		return raw
	}

	return strings.Join(sentences[:len(sentences)-1], ".") + "."
}
