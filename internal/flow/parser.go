package flow

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed flows/*.yaml
var builtinFlows embed.FS

// DefaultFlowName is the flow used when no file is given.
const DefaultFlowName = "realmadrid-shop"

// DefaultActRetries applies when a step does not set act_retries.
const DefaultActRetries = 1

// ParseError reports a problem in a flow document.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

type flowDoc struct {
	Name  string            `yaml:"name"`
	URL   string            `yaml:"url"`
	Vars  map[string]string `yaml:"vars"`
	Steps []yaml.Node       `yaml:"steps"`
}

type stepDoc struct {
	Name        string     `yaml:"name"`
	Label       string     `yaml:"label"`
	Navigate    string     `yaml:"navigate"`
	Instruction string     `yaml:"instruction"`
	Needle      string     `yaml:"needle"`
	Fallback    string     `yaml:"fallback"`
	ActRetries  *int       `yaml:"act_retries"`
	Check       *checkDoc  `yaml:"check"`
	Checks      []checkDoc `yaml:"checks"`
	Extract     string     `yaml:"extract"`
	Required    bool       `yaml:"required"`
}

type checkDoc struct {
	Instruction string `yaml:"instruction"`
	Expected    string `yaml:"expected"`
	Retries     int    `yaml:"retries"`
	OnRetry     string `yaml:"on_retry"`
	Message     string `yaml:"message"`
	RetryDelay  string `yaml:"retry_delay"`
}

// ParseFile parses a YAML flow file.
func ParseFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow file: %w", err)
	}
	return Parse(data, path)
}

// Builtin returns an embedded flow by name.
func Builtin(name string) (*Flow, error) {
	path := "flows/" + name + ".yaml"
	data, err := builtinFlows.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unknown builtin flow %q", name)
	}
	return Parse(data, path)
}

// Parse decodes a flow document. ${name} references are expanded from the
// document's vars first, then from the environment.
func Parse(data []byte, sourcePath string) (*Flow, error) {
	var doc flowDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Path: sourcePath, Message: err.Error()}
	}
	if len(doc.Steps) == 0 {
		return nil, &ParseError{Path: sourcePath, Line: 1, Message: "flow has no steps"}
	}

	expand := func(s string) string {
		return os.Expand(s, func(key string) string {
			if v, ok := doc.Vars[key]; ok {
				return v
			}
			return os.Getenv(key)
		})
	}

	f := &Flow{
		Name:       expand(doc.Name),
		URL:        expand(doc.URL),
		SourcePath: sourcePath,
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(sourcePath, ".yaml")
	}

	for i := range doc.Steps {
		node := &doc.Steps[i]
		var sd stepDoc
		if err := node.Decode(&sd); err != nil {
			return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: err.Error()}
		}
		step, err := sd.toStep(expand)
		if err != nil {
			return nil, &ParseError{Path: sourcePath, Line: node.Line, Message: err.Error()}
		}
		f.Steps = append(f.Steps, step)
	}
	return f, nil
}

func (sd stepDoc) toStep(expand func(string) string) (Step, error) {
	step := Step{
		Name:        expand(sd.Name),
		Label:       expand(sd.Label),
		Navigate:    expand(sd.Navigate),
		Instruction: expand(sd.Instruction),
		Needle:      expand(sd.Needle),
		Fallback:    expand(sd.Fallback),
		ActRetries:  DefaultActRetries,
		Extract:     expand(sd.Extract),
		Required:    sd.Required,
	}
	if step.Name == "" {
		return Step{}, fmt.Errorf("step is missing a name")
	}
	if sd.ActRetries != nil {
		if *sd.ActRetries < 0 {
			return Step{}, fmt.Errorf("step %q: act_retries must not be negative", step.Name)
		}
		step.ActRetries = *sd.ActRetries
	}
	if step.Needle != "" && step.Instruction == "" {
		return Step{}, fmt.Errorf("step %q: needle requires an instruction to observe", step.Name)
	}

	checks := sd.Checks
	if sd.Check != nil {
		checks = append([]checkDoc{*sd.Check}, checks...)
	}
	for _, cd := range checks {
		c := Check{
			Instruction: expand(cd.Instruction),
			Expected:    expand(cd.Expected),
			Retries:     cd.Retries,
			OnRetry:     expand(cd.OnRetry),
			Message:     expand(cd.Message),
		}
		if c.Instruction == "" || c.Expected == "" {
			return Step{}, fmt.Errorf("step %q: check needs instruction and expected", step.Name)
		}
		if c.Retries < 0 {
			return Step{}, fmt.Errorf("step %q: check retries must not be negative", step.Name)
		}
		if cd.RetryDelay != "" {
			d, err := time.ParseDuration(cd.RetryDelay)
			if err != nil {
				return Step{}, fmt.Errorf("step %q: retry_delay: %w", step.Name, err)
			}
			c.RetryDelay = d
		}
		step.Checks = append(step.Checks, c)
	}
	return step, nil
}
