package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rahul/shopcheck/internal/observability"
)

// DefaultRetryDelay lets asynchronous page state settle between check attempts.
const DefaultRetryDelay = 1500 * time.Millisecond

// captureTimeout bounds the diagnostic screenshot, which still runs after the
// run context has expired.
const captureTimeout = 15 * time.Second

// Runner executes flows step by step.
type Runner struct {
	RetryDelay time.Duration
	Command    string
	Logger     *observability.Logger
	// OnStepComplete is called after every result, skipped ones included.
	OnStepComplete func(StepResult)

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

func NewRunner(logger *observability.Logger) *Runner {
	if logger == nil {
		logger = observability.Discard()
	}
	return &Runner{
		RetryDelay: DefaultRetryDelay,
		Logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
		newID:      uuid.NewString,
	}
}

// Run executes every step of f in order. The returned report always holds
// one result per step. The error is non-nil only when a required step
// failed or the context ended, in which case the remaining steps are
// recorded as skipped.
func (r *Runner) Run(ctx context.Context, sess Session, f Flow) (*RunReport, error) {
	if sess.Page == nil || sess.Actor == nil || sess.Extractor == nil || sess.Artifacts == nil {
		return nil, errors.New("flow: session is missing a collaborator")
	}

	report := &RunReport{
		ID:        r.newID(),
		FlowName:  f.Name,
		URL:       f.URL,
		Command:   r.Command,
		StartedAt: r.now(),
		Results:   make([]StepResult, 0, len(f.Steps)),
	}
	r.Logger.LogRun(report.ID, "start", map[string]any{
		"flow":  f.Name,
		"url":   f.URL,
		"steps": len(f.Steps),
	})

	var runErr error
	for i, step := range f.Steps {
		if runErr == nil && ctx.Err() != nil {
			report.Aborted = true
			runErr = fmt.Errorf("run interrupted before step %q: %w", step.Name, ctx.Err())
		}

		var res StepResult
		if runErr != nil {
			res = r.skipped(i, step, runErr)
		} else {
			var stepErr error
			res, stepErr = r.runStep(ctx, report.ID, sess, i, step)
			if step.Required && !res.Succeeded() {
				report.Aborted = true
				runErr = &StepError{Kind: KindFatal, Step: step.Name, Cause: stepErr}
			}
		}

		report.Results = append(report.Results, res)
		r.Logger.LogStep(report.ID, res.Name, string(res.Status), string(res.Path), res.Duration, res.Error)
		if r.OnStepComplete != nil {
			r.OnStepComplete(res)
		}
	}

	report.FinishedAt = r.now()
	r.Logger.LogRun(report.ID, "end", map[string]any{
		"successful": report.Successful(),
		"aborted":    report.Aborted,
	})
	return report, runErr
}

func (r *Runner) skipped(index int, step Step, cause error) StepResult {
	return StepResult{
		Index:     index,
		Name:      step.Name,
		Label:     labelFor(index, step),
		Status:    StatusSkipped,
		Path:      PathNone,
		Error:     "skipped: " + cause.Error(),
		HasChecks: len(step.Checks) > 0,
		StartedAt: r.now(),
	}
}

// stepRun holds the mutable state of one step while it executes.
type stepRun struct {
	r      *Runner
	runID  string
	sess   Session
	step   Step
	result StepResult
}

func (r *Runner) runStep(ctx context.Context, runID string, sess Session, index int, step Step) (StepResult, error) {
	st := &stepRun{
		r:     r,
		runID: runID,
		sess:  sess,
		step:  step,
		result: StepResult{
			Index:     index,
			Name:      step.Name,
			Label:     labelFor(index, step),
			Path:      PathNone,
			HasChecks: len(step.Checks) > 0,
			StartedAt: r.now(),
		},
	}

	var actionErr error
	if step.Navigate != "" {
		actionErr = st.navigate(ctx)
	}
	if actionErr == nil {
		st.result.Path, actionErr = st.act(ctx)
	}

	stepErr := actionErr
	if len(step.Checks) > 0 {
		if err := st.verify(ctx); err != nil {
			stepErr = err
		} else {
			stepErr = nil
		}
		if actionErr != nil && stepErr != actionErr {
			st.result.ActionErr = actionErr.Error()
		}
	}

	if step.Extract != "" {
		text, err := sess.Extractor.Extract(ctx, step.Extract)
		if err != nil {
			st.saveText("extract-error.txt", err.Error())
			if stepErr == nil {
				stepErr = &StepError{Kind: KindActionFailed, Step: step.Name, Cause: fmt.Errorf("extract: %w", err)}
			}
		} else {
			st.result.Extracted = text
			st.saveText("extract.txt", text)
		}
	}

	st.capture(ctx)

	st.result.Status = statusOf(stepErr)
	if stepErr != nil {
		st.result.Error = stepErr.Error()
		var se *StepError
		if errors.As(stepErr, &se) {
			st.result.ErrKind = se.Kind
		} else {
			st.result.ErrKind = KindActionFailed
		}
	}
	st.result.Duration = r.now().Sub(st.result.StartedAt)
	return st.result, stepErr
}

func statusOf(err error) Status {
	switch {
	case err == nil:
		return StatusPassed
	case errors.Is(err, ErrActionNotFound):
		return StatusNoMatch
	default:
		return StatusFailed
	}
}

func (st *stepRun) navigate(ctx context.Context) error {
	if err := st.sess.Page.Navigate(ctx, st.step.Navigate); err != nil {
		st.saveText("navigate-error.txt", err.Error())
		return &StepError{Kind: KindActionFailed, Step: st.step.Name, Cause: fmt.Errorf("navigate %s: %w", st.step.Navigate, err)}
	}
	if err := st.sess.Page.WaitLoad(ctx); err != nil {
		st.saveText("navigate-error.txt", err.Error())
		return &StepError{Kind: KindActionFailed, Step: st.step.Name, Cause: fmt.Errorf("wait for load: %w", err)}
	}
	return nil
}

// act applies the fallback chain: primary, then fallback, then nothing.
func (st *stepRun) act(ctx context.Context) (Path, error) {
	step := st.step
	if step.Instruction == "" && step.Fallback == "" {
		return PathNone, nil
	}

	var primaryErr error
	if step.Instruction != "" {
		if step.Needle != "" {
			primaryErr = st.observeAndAct(ctx)
			if primaryErr == nil {
				return PathObserved, nil
			}
		} else {
			if err := st.actWithRetry(ctx, step.Instruction, step.ActRetries); err != nil {
				st.saveText("act-error.txt", err.Error())
				primaryErr = &StepError{Kind: KindActionFailed, Step: step.Name, Cause: err}
			} else {
				return PathPrimary, nil
			}
		}
	}

	if step.Fallback == "" {
		return PathNone, primaryErr
	}
	if err := st.actWithRetry(ctx, step.Fallback, step.ActRetries); err != nil {
		st.saveText("fallback-error.txt", err.Error())
		return PathFallback, &StepError{Kind: KindActionFailed, Step: step.Name, Cause: err}
	}
	return PathFallback, nil
}

func (st *stepRun) observeAndAct(ctx context.Context) error {
	step := st.step
	actions, err := st.sess.Actor.Observe(ctx, step.Instruction)
	if err != nil {
		st.saveText("observe-error.txt", err.Error())
		return &StepError{Kind: KindActionFailed, Step: step.Name, Cause: fmt.Errorf("observe: %w", err)}
	}

	match, ok := PickAction(actions, step.Needle)
	if !ok {
		st.saveJSON("observe.json", actions)
		return &StepError{
			Kind:  KindActionNotFound,
			Step:  step.Name,
			Cause: fmt.Errorf("needle %q not among %d candidates", step.Needle, len(actions)),
		}
	}

	if err := st.sess.Actor.Perform(ctx, match); err != nil {
		st.saveText("perform-error.txt", err.Error())
		return &StepError{Kind: KindActionFailed, Step: step.Name, Cause: fmt.Errorf("perform %q: %w", match.Description, err)}
	}
	return nil
}

func (st *stepRun) actWithRetry(ctx context.Context, instruction string, retries int) error {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		err := st.sess.Actor.Act(ctx, instruction)
		if err == nil {
			return nil
		}
		lastErr = err
		st.r.Logger.LogAttempt(st.runID, st.step.Name, "act", attempt+1, retries+1, err.Error())
		if ctx.Err() != nil {
			break
		}
	}
	return lastErr
}

func (st *stepRun) verify(ctx context.Context) error {
	for i, c := range st.step.Checks {
		if err := st.verifyCheck(ctx, i, c); err != nil {
			return err
		}
	}
	return nil
}

func (st *stepRun) verifyCheck(ctx context.Context, index int, c Check) error {
	delay := c.RetryDelay
	if delay == 0 {
		delay = st.r.RetryDelay
	}

	var lastText string
	for attempt := 0; attempt <= c.Retries; attempt++ {
		st.result.Attempts++
		text, err := st.sess.Extractor.Extract(ctx, c.Instruction)
		if err != nil {
			lastText = "extraction error: " + err.Error()
		} else {
			lastText = text
		}

		passed := err == nil && ContainsFold(text, c.Expected)
		st.r.Logger.LogVerification(st.runID, st.step.Name, c.Expected, attempt+1, passed)
		if passed {
			return nil
		}
		if attempt == c.Retries {
			break
		}

		if c.OnRetry != "" {
			if err := st.actWithRetry(ctx, c.OnRetry, 1); err != nil {
				st.saveText(fmt.Sprintf("check%d-retry%d-act-error.txt", index+1, attempt+1), err.Error())
			}
		}
		if err := st.r.sleep(ctx, delay); err != nil {
			break
		}
	}

	st.saveText(fmt.Sprintf("check%d-extract.txt", index+1), lastText)
	cause := fmt.Errorf("expected %q not found in extraction", c.Expected)
	if c.Message != "" {
		cause = fmt.Errorf("%s: %w", c.Message, cause)
	}
	return &StepError{Kind: KindVerificationFailed, Step: st.step.Name, Cause: cause}
}

func (st *stepRun) capture(ctx context.Context) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), captureTimeout)
	defer cancel()

	buf, err := st.sess.Page.Screenshot(cctx)
	if err != nil {
		st.saveText("screenshot-error.txt", err.Error())
		return
	}
	ref, err := st.sess.Artifacts.Save(st.result.Label+".png", ContentTypePNG, buf)
	if err != nil {
		log.Printf("failed to save screenshot for step %q: %v", st.step.Name, err)
		return
	}
	st.result.Screenshot = ref
	st.r.Logger.LogArtifact(st.runID, st.step.Name, ref)
}

func (st *stepRun) save(suffix, contentType string, data []byte) {
	name := st.result.Label + "-" + suffix
	ref, err := st.sess.Artifacts.Save(name, contentType, data)
	if err != nil {
		log.Printf("failed to save artifact %s: %v", name, err)
		return
	}
	st.result.Artifacts = append(st.result.Artifacts, Artifact{Name: name, ContentType: contentType, Ref: ref})
	st.r.Logger.LogArtifact(st.runID, st.step.Name, ref)
}

func (st *stepRun) saveText(suffix, text string) {
	st.save(suffix, ContentTypeText, []byte(text))
}

func (st *stepRun) saveJSON(suffix string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		st.saveText(strings.TrimSuffix(suffix, ".json")+".txt", fmt.Sprintf("%+v", v))
		return
	}
	st.save(suffix, ContentTypeJSON, data)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func labelFor(index int, step Step) string {
	if step.Label != "" {
		return step.Label
	}
	slug := strings.Trim(nonSlug.ReplaceAllString(Normalize(step.Name), "-"), "-")
	if slug == "" {
		slug = "step"
	}
	return fmt.Sprintf("%02d-%s", index+1, slug)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
