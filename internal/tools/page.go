package tools

import (
	"context"
	"encoding/json"
	"fmt"
)

// Interactor is the part of the browser session the page tools drive.
type Interactor interface {
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, text string) error
	Press(ctx context.Context, key string) error
	Scroll(ctx context.Context, selector string) error
	Select(ctx context.Context, selector, value string) error
}

// Input is the argument object every page tool accepts.
type Input struct {
	Selector string `json:"selector"`
	Text     string `json:"text"`
}

func parseInput(input string) (Input, error) {
	var args Input
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return args, fmt.Errorf("invalid input: %v", err)
	}
	return args, nil
}

func selectorParam() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Selector of the target element, copied exactly from the element list",
	}
}

// RegisterPageTools adds click, fill, press, scroll and select to reg.
func RegisterPageTools(reg *Registry, page Interactor) {
	reg.Register(&ClickTool{Page: page})
	reg.Register(&FillTool{Page: page})
	reg.Register(&PressTool{Page: page})
	reg.Register(&ScrollTool{Page: page})
	reg.Register(&SelectTool{Page: page})
}

type ClickTool struct {
	Page Interactor
}

func (t *ClickTool) Name() string { return "click" }

func (t *ClickTool) Description() string {
	return "Click a button, link or other element on the page."
}

func (t *ClickTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"selector": selectorParam(),
		},
		"required": []string{"selector"},
	}
}

func (t *ClickTool) Execute(ctx context.Context, input string) (string, error) {
	args, err := parseInput(input)
	if err != nil {
		return "", err
	}
	if args.Selector == "" {
		return "", fmt.Errorf("selector required")
	}
	if err := t.Page.Click(ctx, args.Selector); err != nil {
		return "", fmt.Errorf("click %s: %w", args.Selector, err)
	}
	return fmt.Sprintf("Clicked %s", args.Selector), nil
}

type FillTool struct {
	Page Interactor
}

func (t *FillTool) Name() string { return "fill" }

func (t *FillTool) Description() string {
	return "Replace the content of an input or textarea with the given text."
}

func (t *FillTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"selector": selectorParam(),
			"text": map[string]any{
				"type":        "string",
				"description": "The text to type",
			},
		},
		"required": []string{"selector", "text"},
	}
}

func (t *FillTool) Execute(ctx context.Context, input string) (string, error) {
	args, err := parseInput(input)
	if err != nil {
		return "", err
	}
	if args.Selector == "" || args.Text == "" {
		return "", fmt.Errorf("selector and text required")
	}
	if err := t.Page.Fill(ctx, args.Selector, args.Text); err != nil {
		return "", fmt.Errorf("fill %s: %w", args.Selector, err)
	}
	return fmt.Sprintf("Typed text in %s", args.Selector), nil
}

type PressTool struct {
	Page Interactor
}

func (t *PressTool) Name() string { return "press" }

func (t *PressTool) Description() string {
	return "Press a keyboard key such as Enter, Escape or Tab on the focused element."
}

func (t *PressTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "The key to press",
			},
		},
		"required": []string{"text"},
	}
}

func (t *PressTool) Execute(ctx context.Context, input string) (string, error) {
	args, err := parseInput(input)
	if err != nil {
		return "", err
	}
	if args.Text == "" {
		return "", fmt.Errorf("text (key) required")
	}
	if err := t.Page.Press(ctx, args.Text); err != nil {
		return "", fmt.Errorf("press %s: %w", args.Text, err)
	}
	return fmt.Sprintf("Pressed key: %s", args.Text), nil
}

type ScrollTool struct {
	Page Interactor
}

func (t *ScrollTool) Name() string { return "scroll" }

func (t *ScrollTool) Description() string {
	return "Scroll an element into view, or scroll one screen down when no selector is given."
}

func (t *ScrollTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"selector": selectorParam(),
		},
	}
}

func (t *ScrollTool) Execute(ctx context.Context, input string) (string, error) {
	args, err := parseInput(input)
	if err != nil {
		return "", err
	}
	if err := t.Page.Scroll(ctx, args.Selector); err != nil {
		return "", fmt.Errorf("scroll: %w", err)
	}
	if args.Selector == "" {
		return "Scrolled one screen down", nil
	}
	return fmt.Sprintf("Scrolled to %s", args.Selector), nil
}

type SelectTool struct {
	Page Interactor
}

func (t *SelectTool) Name() string { return "select" }

func (t *SelectTool) Description() string {
	return "Choose an option of a <select> dropdown by its value."
}

func (t *SelectTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"selector": selectorParam(),
			"text": map[string]any{
				"type":        "string",
				"description": "The option value to select",
			},
		},
		"required": []string{"selector", "text"},
	}
}

func (t *SelectTool) Execute(ctx context.Context, input string) (string, error) {
	args, err := parseInput(input)
	if err != nil {
		return "", err
	}
	if args.Selector == "" || args.Text == "" {
		return "", fmt.Errorf("selector and text required")
	}
	if err := t.Page.Select(ctx, args.Selector, args.Text); err != nil {
		return "", fmt.Errorf("select %s: %w", args.Selector, err)
	}
	return fmt.Sprintf("Selected %q in %s", args.Text, args.Selector), nil
}
