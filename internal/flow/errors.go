package flow

import (
	"errors"
	"fmt"
)

// ErrorKind classifies step failures.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindActionNotFound     ErrorKind = "action_not_found"
	KindActionFailed       ErrorKind = "action_failed"
	KindVerificationFailed ErrorKind = "verification_failed"
	KindFatal              ErrorKind = "fatal"
)

var (
	ErrActionNotFound     = errors.New("no matching action")
	ErrActionFailed       = errors.New("action failed")
	ErrVerificationFailed = errors.New("verification failed")
	ErrFatal              = errors.New("required step failed")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindActionNotFound:
		return ErrActionNotFound
	case KindActionFailed:
		return ErrActionFailed
	case KindVerificationFailed:
		return ErrVerificationFailed
	case KindFatal:
		return ErrFatal
	}
	return nil
}

// StepError ties a failure to the step that produced it.
type StepError struct {
	Kind  ErrorKind
	Step  string
	Cause error
}

func (e *StepError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("step %q: %v: %v", e.Step, e.Kind.sentinel(), e.Cause)
	}
	return fmt.Sprintf("step %q: %v", e.Step, e.Kind.sentinel())
}

// Is matches the sentinel of the error kind.
func (e *StepError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (e *StepError) Unwrap() error {
	return e.Cause
}
