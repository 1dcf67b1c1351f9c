// Package capability defines the contract between the dispatcher and the
// task executors. Each executor registers itself under the function name the
// AI model calls; the dispatcher never switches on names.
package capability

import (
	"context"
	"fmt"
)

// Call is a task execution's function call after the correlation ids have
// been checked. Args is still loosely typed; Bind turns it into the
// executor's own argument struct.
type Call struct {
	TaskExecutionID string
	Function        string
	ConversationID  string
	LeadID          string
	AssistantID     string
	Args            Arguments
}

// Outcome is a successful execution: the text posted into the conversation.
type Outcome struct {
	Message string
}

// Capability is one action the assistant can trigger.
type Capability interface {
	// Name is the function name declared to the model.
	Name() string

	// Apology prefixes the reason of a failed execution in the user message.
	Apology() string

	// Bind validates the call and prepares a typed invocation. A *Failure
	// carries the text shown to the user.
	Bind(ctx context.Context, call Call) (Invocation, error)
}

// Invocation is a bound call ready to run exactly once.
type Invocation interface {
	Execute(ctx context.Context) (*Outcome, error)
}

// BindFunc converts a call into typed arguments A.
type BindFunc[A any] func(ctx context.Context, call Call) (A, error)

// ExecFunc runs an executor with typed arguments.
type ExecFunc[A any] func(ctx context.Context, taskExecutionID string, args A) (*Outcome, error)

// New builds a Capability from a typed bind/execute pair.
func New[A any](name, apology string, bind BindFunc[A], exec ExecFunc[A]) Capability {
	return &typed[A]{name: name, apology: apology, bind: bind, exec: exec}
}

type typed[A any] struct {
	name    string
	apology string
	bind    BindFunc[A]
	exec    ExecFunc[A]
}

func (t *typed[A]) Name() string    { return t.name }
func (t *typed[A]) Apology() string { return t.apology }

func (t *typed[A]) Bind(ctx context.Context, call Call) (Invocation, error) {
	args, err := t.bind(ctx, call)
	if err != nil {
		return nil, err
	}
	return &invocation[A]{exec: t.exec, taskExecutionID: call.TaskExecutionID, args: args}, nil
}

type invocation[A any] struct {
	exec            ExecFunc[A]
	taskExecutionID string
	args            A
}

func (i *invocation[A]) Execute(ctx context.Context) (*Outcome, error) {
	return i.exec(ctx, i.taskExecutionID, i.args)
}

// Failure is an expected, user-explainable failure. Reason is shown to the
// user; Note is what was written into the task execution's metadata.
type Failure struct {
	Reason string
	Note   string
	Err    error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Reason, f.Err)
	}
	return f.Reason
}

func (f *Failure) Unwrap() error { return f.Err }

// Failf builds a Failure whose audit note equals its reason.
func Failf(format string, args ...any) *Failure {
	msg := fmt.Sprintf(format, args...)
	return &Failure{Reason: msg, Note: msg}
}
