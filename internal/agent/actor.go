package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/rahul/shopcheck/internal/browser"
	"github.com/rahul/shopcheck/internal/flow"
	"github.com/rahul/shopcheck/internal/governance"
	"github.com/rahul/shopcheck/internal/observability"
	"github.com/rahul/shopcheck/internal/tools"
	"github.com/tmc/langchaingo/llms"
)

const (
	DefaultMaxSteps   = 3
	proposeActionTool = "propose_actions"
	defaultMethod     = "click"
)

var (
	// ErrNoAction is returned when the model performed nothing for an instruction.
	ErrNoAction = errors.New("no action performed")
	// ErrDenied is returned when a guardrail blocks an action.
	ErrDenied = errors.New("action denied by policy")
)

// Actor turns natural-language instructions into page actions using a
// tool-calling model.
type Actor struct {
	Model     llms.Model
	ModelName string
	Page      Page
	Registry  *tools.Registry
	Prompts   *PromptManager
	Policy    governance.PolicyEngine
	Logger    *observability.Logger
	MaxSteps  int
}

func NewActor(model llms.Model, page Page, registry *tools.Registry, prompts *PromptManager, policy governance.PolicyEngine, logger *observability.Logger) *Actor {
	return &Actor{
		Model:    model,
		Page:     page,
		Registry: registry,
		Prompts:  prompts,
		Policy:   policy,
		Logger:   logger,
		MaxSteps: DefaultMaxSteps,
	}
}

var _ flow.Actor = (*Actor)(nil)

// Act lets the model call page tools until it stops or MaxSteps turns pass.
func (a *Actor) Act(ctx context.Context, instruction string) error {
	systemPrompt, err := a.Prompts.GetPrompt(PromptAct)
	if err != nil {
		return err
	}
	elems, err := a.Page.Elements(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	labels := elementText(elems)

	messages := []llms.MessageContent{
		systemMessage(systemPrompt),
		humanMessage(a.pagePrompt(ctx, instruction, elems)),
	}

	var llmTools []llms.Tool
	for _, t := range a.Registry.List() {
		llmTools = append(llmTools, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}

	maxSteps := a.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	performed := 0
	var lastErr error
	for i := 0; i < maxSteps; i++ {
		choice, err := generate(ctx, a.Model, a.Logger, a.ModelName, PromptAct, instruction, messages, llms.WithTools(llmTools))
		if err != nil {
			return err
		}

		var assistantParts []llms.ContentPart
		if choice.Content != "" {
			assistantParts = append(assistantParts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: assistantParts,
		})

		if len(choice.ToolCalls) == 0 {
			if performed == 0 {
				if lastErr != nil {
					return lastErr
				}
				return fmt.Errorf("%w: %s", ErrNoAction, truncate(choice.Content, 200))
			}
			return nil
		}

		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			args := tc.FunctionCall.Arguments
			result, err := a.execute(ctx, instruction, tc.FunctionCall.Name, args, labels[selectorOf(args)])
			if err != nil {
				lastErr = err
				result = fmt.Sprintf("Error: %v", err)
				if errors.Is(err, ErrDenied) {
					return err
				}
			} else {
				performed++
			}

			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: tc.ID,
						Name:       tc.FunctionCall.Name,
						Content:    result,
					},
				},
			})
		}
	}

	if performed == 0 {
		if lastErr != nil {
			return lastErr
		}
		return fmt.Errorf("%w after %d turns", ErrNoAction, maxSteps)
	}
	return nil
}

type proposal struct {
	Actions []struct {
		Selector    string `json:"selector"`
		Description string `json:"description"`
		Method      string `json:"method"`
		Argument    string `json:"argument"`
	} `json:"actions"`
}

// Observe asks the model for candidate actions without performing any.
// Candidates whose selector is not on the page are dropped.
func (a *Actor) Observe(ctx context.Context, instruction string) ([]flow.Action, error) {
	systemPrompt, err := a.Prompts.GetPrompt(PromptObserve)
	if err != nil {
		return nil, err
	}
	elems, err := a.Page.Elements(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	messages := []llms.MessageContent{
		systemMessage(systemPrompt),
		humanMessage(a.pagePrompt(ctx, instruction, elems)),
	}
	choice, err := generate(ctx, a.Model, a.Logger, a.ModelName, PromptObserve, instruction, messages, llms.WithTools([]llms.Tool{observeTool()}))
	if err != nil {
		return nil, err
	}

	raw := ""
	for _, tc := range choice.ToolCalls {
		if tc.FunctionCall != nil && tc.FunctionCall.Name == proposeActionTool {
			raw = tc.FunctionCall.Arguments
			break
		}
	}
	if raw == "" {
		obj, ok := jsonObject(choice.Content)
		if !ok {
			return nil, fmt.Errorf("observe: no proposal in model reply: %s", truncate(choice.Content, 200))
		}
		raw = obj
	}

	var p proposal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("observe: invalid proposal: %w", err)
	}

	bySelector := make(map[string]browser.Element, len(elems))
	for _, e := range elems {
		bySelector[e.Selector] = e
	}

	actions := make([]flow.Action, 0, len(p.Actions))
	for _, c := range p.Actions {
		el, ok := bySelector[c.Selector]
		if !ok {
			log.Printf("Observe: dropping candidate with unknown selector %q", c.Selector)
			continue
		}
		method := strings.ToLower(strings.TrimSpace(c.Method))
		if method == "" {
			method = defaultMethod
		}
		actions = append(actions, flow.Action{
			Description: c.Description,
			Selector:    c.Selector,
			Method:      method,
			Argument:    c.Argument,
			Element:     flow.ElementInfo{Tag: el.Tag, Text: el.Text},
		})
	}
	return actions, nil
}

// Perform executes one observed action through the page tools.
func (a *Actor) Perform(ctx context.Context, action flow.Action) error {
	method := action.Method
	if method == "" {
		method = defaultMethod
	}
	args, err := json.Marshal(tools.Input{Selector: action.Selector, Text: action.Argument})
	if err != nil {
		return err
	}
	description := strings.TrimSpace(action.Description + " " + action.Element.Text)
	_, err = a.execute(ctx, action.Description, method, string(args), description)
	return err
}

func (a *Actor) execute(ctx context.Context, step, name, args, description string) (string, error) {
	tool := a.Registry.Get(name)
	if tool == nil {
		err := fmt.Errorf("tool %s not found", name)
		a.Logger.LogAction(step, name, args, err)
		return "", err
	}

	if a.Policy != nil {
		res, err := a.Policy.Evaluate(ctx, governance.Request{Tool: name, Arguments: args, Description: description})
		if err != nil {
			return "", fmt.Errorf("policy check: %w", err)
		}
		a.Logger.LogPolicy(name, string(res.Effect), res.Reason)
		if res.Effect == governance.EffectDeny {
			return "", fmt.Errorf("%w: %s", ErrDenied, res.Reason)
		}
	}

	result, err := tool.Execute(ctx, args)
	a.Logger.LogAction(step, name, args, err)
	return result, err
}

func (a *Actor) pagePrompt(ctx context.Context, instruction string, elems []browser.Element) string {
	location, err := a.Page.Location(ctx)
	if err != nil {
		location = "unknown"
	}
	if title, err := a.Page.Title(ctx); err == nil && title != "" {
		location = fmt.Sprintf("%s (%s)", location, title)
	}
	return fmt.Sprintf("INSTRUCTION: %s\n\nPAGE: %s\n\nELEMENTS:\n%s", instruction, location, browser.FormatElements(elems))
}

func observeTool() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        proposeActionTool,
			Description: "Propose the page elements that match the instruction, best first.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"actions": map[string]any{
						"type": "array",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"selector":    map[string]any{"type": "string"},
								"description": map[string]any{"type": "string"},
								"method": map[string]any{
									"type": "string",
									"enum": []string{"click", "fill", "press", "scroll", "select"},
								},
								"argument": map[string]any{"type": "string"},
							},
							"required": []string{"selector", "description"},
						},
					},
				},
				"required": []string{"actions"},
			},
		},
	}
}

func elementText(elems []browser.Element) map[string]string {
	m := make(map[string]string, len(elems))
	for _, e := range elems {
		m[e.Selector] = e.Text
	}
	return m
}

func selectorOf(args string) string {
	var in tools.Input
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return ""
	}
	return in.Selector
}
