package tools

import (
	"context"
	"errors"
	"testing"
)

type recordingPage struct {
	calls []string
	err   error
}

func (p *recordingPage) Click(ctx context.Context, selector string) error {
	p.calls = append(p.calls, "click "+selector)
	return p.err
}

func (p *recordingPage) Fill(ctx context.Context, selector, text string) error {
	p.calls = append(p.calls, "fill "+selector+" "+text)
	return p.err
}

func (p *recordingPage) Press(ctx context.Context, key string) error {
	p.calls = append(p.calls, "press "+key)
	return p.err
}

func (p *recordingPage) Scroll(ctx context.Context, selector string) error {
	p.calls = append(p.calls, "scroll "+selector)
	return p.err
}

func (p *recordingPage) Select(ctx context.Context, selector, value string) error {
	p.calls = append(p.calls, "select "+selector+" "+value)
	return p.err
}

func TestRegisterPageTools(t *testing.T) {
	reg := NewRegistry()
	RegisterPageTools(reg, &recordingPage{})

	var names []string
	for _, tool := range reg.List() {
		names = append(names, tool.Name())
	}
	want := []string{"click", "fill", "press", "scroll", "select"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("tool %d: expected %s, got %s", i, want[i], names[i])
		}
	}
}

func TestPageTools_Execute(t *testing.T) {
	page := &recordingPage{}
	reg := NewRegistry()
	RegisterPageTools(reg, page)
	ctx := context.Background()

	cases := []struct {
		tool, input, call string
	}{
		{"click", `{"selector":"[data-shopcheck-id=e1]"}`, "click [data-shopcheck-id=e1]"},
		{"fill", `{"selector":"#q","text":"carvajal"}`, "fill #q carvajal"},
		{"press", `{"text":"Enter"}`, "press Enter"},
		{"scroll", `{}`, "scroll "},
		{"select", `{"selector":"#size","text":"L"}`, "select #size L"},
	}
	for _, c := range cases {
		if _, err := reg.Get(c.tool).Execute(ctx, c.input); err != nil {
			t.Errorf("%s: unexpected error %v", c.tool, err)
		}
		if got := page.calls[len(page.calls)-1]; got != c.call {
			t.Errorf("%s: expected call %q, got %q", c.tool, c.call, got)
		}
	}
}

func TestPageTools_Errors(t *testing.T) {
	page := &recordingPage{err: errors.New("node not found")}
	click := &ClickTool{Page: page}
	ctx := context.Background()

	if _, err := click.Execute(ctx, `not json`); err == nil {
		t.Error("expected invalid input error")
	}
	if _, err := click.Execute(ctx, `{}`); err == nil {
		t.Error("expected missing selector error")
	}
	_, err := click.Execute(ctx, `{"selector":"#x"}`)
	if !errors.Is(err, page.err) {
		t.Errorf("expected wrapped page error, got %v", err)
	}
	if _, err := (&FillTool{Page: page}).Execute(ctx, `{"selector":"#x"}`); err == nil {
		t.Error("fill needs text")
	}
}
