package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeRun          EventType = "run"
	EventTypeStep         EventType = "step"
	EventTypeAttempt      EventType = "attempt"
	EventTypeAction       EventType = "action"
	EventTypeVerification EventType = "verification"
	EventTypeArtifact     EventType = "artifact"
	EventTypePolicyCheck  EventType = "policy_check"
	EventTypeCost         EventType = "cost"
	EventTypeLLM          EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Step      string    `json:"step,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging.
type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

// NewLoggerTo writes events to w. An empty llmLogPath disables the LLM transcript file.
func NewLoggerTo(w io.Writer, llmLogPath string) *Logger {
	return &Logger{
		out:        w,
		llmLogPath: llmLogPath,
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewLoggerTo(io.Discard, "")
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Fprintf(l.out, "{\"error\": \"failed to marshal event: %v\"}\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogRun(runID, phase string, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	data["phase"] = phase
	l.Log(Event{
		Type:  EventTypeRun,
		RunID: runID,
		Data:  data,
	})
}

func (l *Logger) LogStep(runID, step, status, path string, duration time.Duration, errMsg string) {
	d := map[string]any{
		"status":      status,
		"path":        path,
		"duration_ms": duration.Milliseconds(),
	}
	if errMsg != "" {
		d["error"] = errMsg
	}
	l.Log(Event{
		Type:  EventTypeStep,
		RunID: runID,
		Step:  step,
		Data:  d,
	})
}

func (l *Logger) LogAttempt(runID, step, kind string, attempt, maxAttempts int, errMsg string) {
	d := map[string]any{
		"kind":         kind,
		"attempt":      attempt,
		"max_attempts": maxAttempts,
	}
	if errMsg != "" {
		d["error"] = errMsg
	}
	l.Log(Event{
		Type:  EventTypeAttempt,
		RunID: runID,
		Step:  step,
		Data:  d,
	})
}

func (l *Logger) LogAction(step, tool, args string, err error) {
	d := map[string]string{
		"tool": tool,
		"args": args,
	}
	if err != nil {
		d["error"] = err.Error()
	}
	l.Log(Event{
		Type: EventTypeAction,
		Step: step,
		Data: d,
	})
}

func (l *Logger) LogVerification(runID, step, expected string, attempt int, passed bool) {
	l.Log(Event{
		Type:  EventTypeVerification,
		RunID: runID,
		Step:  step,
		Data: map[string]any{
			"expected": expected,
			"attempt":  attempt,
			"passed":   passed,
		},
	})
}

func (l *Logger) LogArtifact(runID, step, ref string) {
	l.Log(Event{
		Type:  EventTypeArtifact,
		RunID: runID,
		Step:  step,
		Data:  map[string]string{"ref": ref},
	})
}

func (l *Logger) LogPolicy(tool, effect, reason string) {
	l.Log(Event{
		Type: EventTypePolicyCheck,
		Data: map[string]string{
			"tool":   tool,
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogCost(promptTokens, completionTokens int, model string) {
	l.Log(Event{
		Type: EventTypeCost,
		Data: map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
			"model":             model,
		},
	})
}

func (l *Logger) LogLLM(kind string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type: EventTypeLLM,
		Data: map[string]any{
			"kind":       kind,
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}
