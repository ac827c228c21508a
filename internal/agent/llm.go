package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rahul/shopcheck/internal/browser"
	"github.com/rahul/shopcheck/internal/observability"
	"github.com/tmc/langchaingo/llms"
)

// Page is the read side of the browser session the agent looks at.
type Page interface {
	Elements(ctx context.Context) ([]browser.Element, error)
	Text(ctx context.Context) (string, error)
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
}

var errEmptyResponse = errors.New("empty model response")

func systemMessage(text string) llms.MessageContent {
	return llms.MessageContent{
		Role:  llms.ChatMessageTypeSystem,
		Parts: []llms.ContentPart{llms.TextPart(text)},
	}
}

func humanMessage(text string) llms.MessageContent {
	return llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(text)},
	}
}

// generate runs one model turn and records the exchange and its token usage.
func generate(ctx context.Context, model llms.Model, logger *observability.Logger, modelName, kind, instruction string, messages []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentChoice, error) {
	resp, err := model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		logger.LogLLM(kind, instruction, "error: "+err.Error(), nil)
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w", kind, errEmptyResponse)
	}

	choice := resp.Choices[0]
	logger.LogLLM(kind, instruction, choice.Content, choice.ToolCalls)
	if choice.GenerationInfo != nil {
		prompt := intValue(choice.GenerationInfo["PromptTokens"])
		completion := intValue(choice.GenerationInfo["CompletionTokens"])
		if prompt+completion > 0 {
			logger.LogCost(prompt, completion, modelName)
		}
	}
	return choice, nil
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// jsonObject returns the outermost {...} of a model reply, dropping code
// fences and chatter around it.
func jsonObject(s string) (string, bool) {
	s = strings.TrimSpace(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	candidate := s[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
