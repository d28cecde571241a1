package research

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
)

const generateMaxRetries = 3

// generateJSON calls the model in JSON mode and validates the response with
// the provided function. It retries up to generateMaxRetries times with a
// linear backoff when the model fails or the validator rejects the output.
func generateJSON(ctx context.Context, model llms.Model, logger *slog.Logger, prompts []llms.MessageContent, validator func(string) error) (string, error) {
	var lastErr error

	for i := 0; i < generateMaxRetries; i++ {
		if i > 0 {
			logger.Warn("Retrying LLM generation", "attempt", i+1, "last_error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Second * time.Duration(i)):
			}
		}

		resp, err := model.GenerateContent(ctx, prompts, llms.WithJSONMode())
		if err != nil {
			lastErr = fmt.Errorf("llm generation failed: %w", err)
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("llm returned no choices")
			continue
		}

		content := resp.Choices[0].Content
		if err := validator(content); err != nil {
			lastErr = fmt.Errorf("validation failed: %w", err)
			continue
		}
		return content, nil
	}

	return "", fmt.Errorf("operation failed after %d retries: %w", generateMaxRetries, lastErr)
}

// generateText runs a single plain-text generation without retries. Callers
// that can degrade gracefully use this and keep their previous state on error.
func generateText(ctx context.Context, model llms.Model, prompts []llms.MessageContent) (string, error) {
	resp, err := model.GenerateContent(ctx, prompts)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm returned no choices")
	}
	return resp.Choices[0].Content, nil
}

// truncateRunes caps a string at n runes without splitting UTF-8 sequences.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
