// Package flow runs ordered, best-effort shopping flows against a page driven
// by natural-language action and extraction capabilities.
package flow

import (
	"context"
	"time"
)

// Action is a candidate interaction proposed by an observation.
type Action struct {
	Description string      `json:"description"`
	Selector    string      `json:"selector,omitempty"`
	Method      string      `json:"method,omitempty"`
	Argument    string      `json:"argument,omitempty"`
	Element     ElementInfo `json:"element"`
}

// ElementInfo describes the page element an Action targets.
type ElementInfo struct {
	Tag  string `json:"tag,omitempty"`
	Text string `json:"text,omitempty"`
}

// Actor performs UI interactions described in natural language.
type Actor interface {
	// Act interprets a free-text instruction and performs it.
	Act(ctx context.Context, instruction string) error
	// Observe lists candidate actions matching the instruction without performing any.
	Observe(ctx context.Context, instruction string) ([]Action, error)
	// Perform executes a candidate returned by Observe.
	Perform(ctx context.Context, action Action) error
}

// Extractor reads information from the current page.
type Extractor interface {
	Extract(ctx context.Context, instruction string) (string, error)
}

// Page is the browser session shared by every step of a run.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitLoad(ctx context.Context) error
	// Screenshot captures the full page at the configured viewport.
	Screenshot(ctx context.Context) ([]byte, error)
}

// ArtifactSink stores diagnostic files and returns a reference usable from the report.
type ArtifactSink interface {
	Save(name, contentType string, data []byte) (string, error)
}

// Session bundles the collaborators a run owns exclusively.
type Session struct {
	Page      Page
	Actor     Actor
	Extractor Extractor
	Artifacts ArtifactSink
}

// Check is a post-condition verified against extracted page text.
type Check struct {
	Instruction string
	Expected    string
	Retries     int
	// OnRetry is a corrective instruction acted on between attempts.
	OnRetry string
	Message string
	// RetryDelay overrides the runner delay when non-zero.
	RetryDelay time.Duration
}

// Step is one named unit of a flow.
type Step struct {
	Name  string
	Label string
	// Navigate opens a URL before any action.
	Navigate string
	// Instruction is the primary instruction. With a Needle it is used for
	// observation, otherwise it is acted on directly.
	Instruction string
	Needle      string
	Fallback    string
	ActRetries  int
	Checks      []Check
	// Extract is recorded verbatim in the result.
	Extract  string
	Required bool
}

// Flow is an ordered list of steps plus run metadata.
type Flow struct {
	Name       string
	URL        string
	SourcePath string
	Steps      []Step
}

// Status is the terminal state of a step.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusNoMatch Status = "no_match"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Path records which branch of the fallback chain performed the action.
type Path string

const (
	PathNone     Path = "none"
	PathObserved Path = "observed"
	PathPrimary  Path = "primary"
	PathFallback Path = "fallback"
)

// Artifact is a stored diagnostic file.
type Artifact struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Ref         string `json:"ref"`
}

// Common content types
const (
	ContentTypePNG  = "image/png"
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain"
)

// StepResult is the immutable outcome of one step.
type StepResult struct {
	Index      int
	Name       string
	Label      string
	Status     Status
	Path       Path
	Screenshot string
	Artifacts  []Artifact
	Extracted  string
	// Attempts counts extraction calls made by checks.
	Attempts int
	ErrKind   ErrorKind
	Error     string
	ActionErr string
	HasChecks bool
	StartedAt time.Time
	Duration  time.Duration
}

func (r StepResult) Succeeded() bool {
	return r.Status == StatusPassed
}

// RunReport is the ordered run log with its metadata.
type RunReport struct {
	ID         string
	FlowName   string
	URL        string
	Command    string
	Dir        string
	StartedAt  time.Time
	FinishedAt time.Time
	Aborted    bool
	Results    []StepResult
}

// Successful reports whether the run finished and every checked step passed.
func (r *RunReport) Successful() bool {
	if r.Aborted {
		return false
	}
	for _, res := range r.Results {
		if res.HasChecks && res.Status != StatusPassed {
			return false
		}
	}
	return true
}

// Counts returns the number of results per status.
func (r *RunReport) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}
