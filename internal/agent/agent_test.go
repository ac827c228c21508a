package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/rahul/shopcheck/internal/browser"
	"github.com/rahul/shopcheck/internal/flow"
	"github.com/rahul/shopcheck/internal/governance"
	"github.com/rahul/shopcheck/internal/observability"
	"github.com/rahul/shopcheck/internal/tools"
	"github.com/tmc/langchaingo/llms"
)

type scriptedModel struct {
	replies  []*llms.ContentChoice
	err      error
	messages [][]llms.MessageContent
	options  []llms.CallOptions
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = append(m.messages, messages)
	var o llms.CallOptions
	for _, opt := range opts {
		opt(&o)
	}
	m.options = append(m.options, o)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) == 0 {
		return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "done"}}}, nil
	}
	c := m.replies[0]
	m.replies = m.replies[1:]
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{c}}, nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
}

func toolCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{
		ID:           id,
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
	}
}

type stubPage struct {
	elems   []browser.Element
	text    string
	actions []string
	err     error
}

func (p *stubPage) Elements(ctx context.Context) ([]browser.Element, error) { return p.elems, nil }
func (p *stubPage) Text(ctx context.Context) (string, error)                { return p.text, nil }
func (p *stubPage) Location(ctx context.Context) (string, error) {
	return "https://shop.test/players", nil
}
func (p *stubPage) Title(ctx context.Context) (string, error) { return "Jugadores | Real Madrid Shop", nil }

func (p *stubPage) Click(ctx context.Context, selector string) error {
	p.actions = append(p.actions, "click "+selector)
	return p.err
}
func (p *stubPage) Fill(ctx context.Context, selector, text string) error {
	p.actions = append(p.actions, "fill "+selector+" "+text)
	return p.err
}
func (p *stubPage) Press(ctx context.Context, key string) error { return p.err }
func (p *stubPage) Scroll(ctx context.Context, selector string) error {
	p.actions = append(p.actions, "scroll "+selector)
	return p.err
}
func (p *stubPage) Select(ctx context.Context, selector, value string) error { return p.err }

var shopElements = []browser.Element{
	{ID: "e1", Tag: "button", Text: "Aceptar todas", Selector: "[data-shopcheck-id=e1]"},
	{ID: "e2", Tag: "a", Text: "Carvajal", Href: "/carvajal", Selector: "[data-shopcheck-id=e2]"},
	{ID: "e3", Tag: "button", Text: "Añadir a la cesta", Selector: "[data-shopcheck-id=e3]"},
}

func newTestActor(t *testing.T, model llms.Model, page *stubPage) *Actor {
	t.Helper()
	reg := tools.NewRegistry()
	tools.RegisterPageTools(reg, page)
	policy, err := governance.NewGuardrails(governance.DefaultDenyPatterns)
	if err != nil {
		t.Fatal(err)
	}
	return NewActor(model, page, reg, NewPromptManager(""), policy, observability.Discard())
}

func TestActor_Act(t *testing.T) {
	page := &stubPage{elems: shopElements}
	model := &scriptedModel{replies: []*llms.ContentChoice{
		{ToolCalls: []llms.ToolCall{toolCall("1", "click", `{"selector":"[data-shopcheck-id=e2]"}`)}},
		{Content: "Clicked Carvajal."},
	}}
	a := newTestActor(t, model, page)

	if err := a.Act(context.Background(), "Click Carvajal"); err != nil {
		t.Fatalf("Act failed: %v", err)
	}
	if len(page.actions) != 1 || page.actions[0] != "click [data-shopcheck-id=e2]" {
		t.Errorf("unexpected page actions %v", page.actions)
	}
	if len(model.options[0].Tools) != 5 {
		t.Errorf("expected 5 page tools offered, got %d", len(model.options[0].Tools))
	}

	// Second turn carries the tool result.
	last := model.messages[1][len(model.messages[1])-1]
	if last.Role != llms.ChatMessageTypeTool {
		t.Errorf("expected tool response message, got %s", last.Role)
	}
	prompt := model.messages[0][1].Parts[0].(llms.TextContent).Text
	if !strings.Contains(prompt, "INSTRUCTION: Click Carvajal") || !strings.Contains(prompt, `"Carvajal"`) {
		t.Errorf("prompt missing instruction or elements:\n%s", prompt)
	}
	if !strings.Contains(prompt, "PAGE: https://shop.test/players (Jugadores | Real Madrid Shop)") {
		t.Errorf("prompt missing page location and title:\n%s", prompt)
	}
}

func TestActor_ActNoToolCall(t *testing.T) {
	page := &stubPage{elems: shopElements}
	model := &scriptedModel{replies: []*llms.ContentChoice{{Content: "There is no cookie banner."}}}
	a := newTestActor(t, model, page)

	err := a.Act(context.Background(), "Accept cookies")
	if !errors.Is(err, ErrNoAction) {
		t.Errorf("expected ErrNoAction, got %v", err)
	}
}

func TestActor_ActToolError(t *testing.T) {
	page := &stubPage{elems: shopElements, err: errors.New("node not found")}
	model := &scriptedModel{replies: []*llms.ContentChoice{
		{ToolCalls: []llms.ToolCall{toolCall("1", "click", `{"selector":"#gone"}`)}},
		{Content: "I could not click it."},
	}}
	a := newTestActor(t, model, page)

	err := a.Act(context.Background(), "Click Carvajal")
	if err == nil || !strings.Contains(err.Error(), "node not found") {
		t.Errorf("expected the tool error, got %v", err)
	}
}

func TestActor_ActDenied(t *testing.T) {
	page := &stubPage{elems: shopElements}
	model := &scriptedModel{replies: []*llms.ContentChoice{
		{ToolCalls: []llms.ToolCall{toolCall("1", "click", `{"selector":"[data-shopcheck-id=e3]"}`)}},
	}}
	a := newTestActor(t, model, page)

	err := a.Act(context.Background(), "Pick size L")
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
	if len(page.actions) != 0 {
		t.Errorf("denied action reached the page: %v", page.actions)
	}
}

func TestActor_ActModelError(t *testing.T) {
	boom := errors.New("connection refused")
	a := newTestActor(t, &scriptedModel{err: boom}, &stubPage{elems: shopElements})
	if err := a.Act(context.Background(), "x"); !errors.Is(err, boom) {
		t.Errorf("expected model error, got %v", err)
	}
}

func TestActor_Observe(t *testing.T) {
	page := &stubPage{elems: shopElements}
	model := &scriptedModel{replies: []*llms.ContentChoice{
		{ToolCalls: []llms.ToolCall{toolCall("1", proposeActionTool, `{"actions":[
			{"selector":"[data-shopcheck-id=e1]","description":"Accept all cookies button"},
			{"selector":"#invented","description":"Accept"},
			{"selector":"[data-shopcheck-id=e2]","description":"Carvajal link","method":"Scroll"}
		]}`)}},
	}}
	a := newTestActor(t, model, page)

	actions, err := a.Observe(context.Background(), "Find the accept cookies button")
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %+v", actions)
	}
	if actions[0].Method != "click" || actions[0].Element.Text != "Aceptar todas" || actions[0].Element.Tag != "button" {
		t.Errorf("unexpected first action %+v", actions[0])
	}
	if actions[1].Method != "scroll" {
		t.Errorf("method should be normalized, got %q", actions[1].Method)
	}
	if len(page.actions) != 0 {
		t.Errorf("observe must not act, got %v", page.actions)
	}
	if got := model.options[0].Tools[0].Function.Name; got != proposeActionTool {
		t.Errorf("expected %s tool, got %s", proposeActionTool, got)
	}
}

func TestActor_ObserveContentFallback(t *testing.T) {
	page := &stubPage{elems: shopElements}
	model := &scriptedModel{replies: []*llms.ContentChoice{
		{Content: "Here you go:\n```json\n{\"actions\":[{\"selector\":\"[data-shopcheck-id=e1]\",\"description\":\"Accept\"}]}\n```"},
	}}
	a := newTestActor(t, model, page)

	actions, err := a.Observe(context.Background(), "accept")
	if err != nil {
		t.Fatal(err)
	}
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}

	model.replies = []*llms.ContentChoice{{Content: "nothing useful"}}
	if _, err := a.Observe(context.Background(), "accept"); err == nil {
		t.Error("expected error for reply without proposal")
	}
}

func TestActor_Perform(t *testing.T) {
	page := &stubPage{elems: shopElements}
	a := newTestActor(t, &scriptedModel{}, page)
	ctx := context.Background()

	err := a.Perform(ctx, flow.Action{Selector: "[data-shopcheck-id=e1]", Description: "Accept all"})
	if err != nil {
		t.Fatalf("Perform failed: %v", err)
	}
	err = a.Perform(ctx, flow.Action{Selector: "#q", Method: "fill", Argument: "carvajal"})
	if err != nil {
		t.Fatalf("Perform fill failed: %v", err)
	}
	want := []string{"click [data-shopcheck-id=e1]", "fill #q carvajal"}
	for i := range want {
		if page.actions[i] != want[i] {
			t.Errorf("action %d: expected %q, got %q", i, want[i], page.actions[i])
		}
	}

	err = a.Perform(ctx, flow.Action{Selector: "[data-shopcheck-id=e3]", Element: flow.ElementInfo{Text: "Añadir a la cesta"}})
	if !errors.Is(err, ErrDenied) {
		t.Errorf("expected ErrDenied, got %v", err)
	}
	if err := a.Perform(ctx, flow.Action{Selector: "#x", Method: "hover"}); err == nil {
		t.Error("expected unknown tool error")
	}
}

func TestExtractor_Extract(t *testing.T) {
	page := &stubPage{text: "TITLE: Camiseta\n-- CONTENT --\nCamiseta Authentic Hombre"}
	model := &scriptedModel{replies: []*llms.ContentChoice{
		{
			Content:        `{"extraction": "Camiseta Authentic Hombre"}`,
			GenerationInfo: map[string]any{"PromptTokens": 120, "CompletionTokens": 8},
		},
	}}
	e := NewExtractor(model, page, NewPromptManager(""), observability.Discard())

	got, err := e.Extract(context.Background(), "What is the product title?")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if got != "Camiseta Authentic Hombre" {
		t.Errorf("unexpected extraction %q", got)
	}
	if !model.options[0].JSONMode {
		t.Error("extraction should request JSON mode")
	}
	prompt := model.messages[0][1].Parts[0].(llms.TextContent).Text
	if !strings.Contains(prompt, "Camiseta Authentic Hombre") {
		t.Errorf("page text missing from prompt:\n%s", prompt)
	}
}

func TestExtractionText(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{"extraction": "Talla L disponible"}`, "Talla L disponible"},
		{"```json\n{\"extraction\": \"ok\"}\n```", "ok"},
		{`{"extraction": {"size": "L", "available": true}}`, `{"available":true,"size":"L"}`},
		{`{"title": "x"}`, `{"title": "x"}`},
		{`"just a string"`, "just a string"},
		{"plain answer", "plain answer"},
	}
	for _, c := range cases {
		if got := ExtractionText(c.in); got != c.want {
			t.Errorf("ExtractionText(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	got := truncate(strings.Repeat("ñ", 10), 5)
	if !utf8.ValidString(got) || got != "ññ..." {
		t.Errorf("unexpected truncation %q", got)
	}
	if got := truncate("  Talla L  ", 20); got != "Talla L" {
		t.Errorf("short text should only be trimmed, got %q", got)
	}
}
