package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rahul/shopcheck/internal/flow"
	"github.com/rahul/shopcheck/internal/observability"
	"github.com/tmc/langchaingo/llms"
)

// Extractor answers questions about the current page text.
type Extractor struct {
	Model     llms.Model
	ModelName string
	Page      Page
	Prompts   *PromptManager
	Logger    *observability.Logger
}

func NewExtractor(model llms.Model, page Page, prompts *PromptManager, logger *observability.Logger) *Extractor {
	return &Extractor{Model: model, Page: page, Prompts: prompts, Logger: logger}
}

var _ flow.Extractor = (*Extractor)(nil)

func (e *Extractor) Extract(ctx context.Context, instruction string) (string, error) {
	systemPrompt, err := e.Prompts.GetPrompt(PromptExtract)
	if err != nil {
		return "", err
	}
	text, err := e.Page.Text(ctx)
	if err != nil {
		return "", fmt.Errorf("page text: %w", err)
	}

	messages := []llms.MessageContent{
		systemMessage(systemPrompt),
		humanMessage(fmt.Sprintf("INSTRUCTION: %s\n\nPAGE CONTENT:\n%s", instruction, text)),
	}
	choice, err := generate(ctx, e.Model, e.Logger, e.ModelName, PromptExtract, instruction, messages, llms.WithJSONMode())
	if err != nil {
		return "", err
	}
	return ExtractionText(choice.Content), nil
}

// ExtractionText renders a model reply as text. An object carrying an
// "extraction" field yields that field, a bare JSON string yields the
// string and anything else is returned as is.
func ExtractionText(reply string) string {
	reply = strings.TrimSpace(reply)
	if obj, ok := jsonObject(reply); ok {
		var m map[string]any
		if err := json.Unmarshal([]byte(obj), &m); err == nil {
			if v, ok := m["extraction"]; ok {
				return valueText(v)
			}
			return obj
		}
	}
	var s string
	if err := json.Unmarshal([]byte(reply), &s); err == nil {
		return s
	}
	return reply
}

func valueText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
