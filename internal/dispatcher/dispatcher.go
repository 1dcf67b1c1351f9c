// Package dispatcher routes a persisted task execution to the capability
// named in its metadata and posts the outcome into the conversation.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/israelwong/promediamx/internal/capability"
	"github.com/israelwong/promediamx/internal/messages"
	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/internal/telemetry"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/rs/zerolog/log"
)

var (
	ErrTaskNotFound       = errors.New("task execution not found")
	ErrInvalidMetadata    = errors.New("invalid task execution metadata")
	ErrIncompleteMetadata = errors.New("incomplete task execution metadata")
	ErrUnknownCapability  = errors.New("unknown capability")
	ErrInvalidArguments   = errors.New("invalid capability arguments")
	ErrExecutionFailed    = errors.New("capability execution failed")
	ErrPersistence        = errors.New("task execution persistence failed")
	ErrInternal           = errors.New("internal dispatcher error")
)

// Dispatcher loads task executions, runs the matching capability and
// reports back into the conversation. Safe for concurrent use.
type Dispatcher struct {
	store    store.TaskExecutionStore
	registry *capability.Registry
	poster   messages.Poster
}

// New creates a Dispatcher.
func New(s store.TaskExecutionStore, r *capability.Registry, p messages.Poster) *Dispatcher {
	return &Dispatcher{store: s, registry: r, poster: p}
}

// Dispatch runs task execution id once. It never panics. A nil error means
// the capability ran and succeeded; failures after the correlation ids are
// known still post exactly one message to the conversation.
func (d *Dispatcher) Dispatch(ctx context.Context, id string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "dispatcher.Dispatch", "task_execution.id", id)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("task_execution", id).Interface("panic", r).Msg("Dispatcher panic recovered")
			capability.MarkFailed(ctx, d.store, id, capability.NoteDispatcher, fmt.Sprint(r))
			err = fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()

	log.Info().Str("task_execution", id).Msg("Dispatching task execution")

	te, err := d.store.GetTaskExecution(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			log.Error().Str("task_execution", id).Msg("Task execution not found")
			return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		log.Error().Err(err).Str("task_execution", id).Msg("Failed to load task execution")
		capability.MarkFailed(ctx, d.store, id, capability.NoteDispatcher, "Error al leer la tarea: "+err.Error())
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	call, err := parseMetadata(te)
	if err != nil {
		log.Error().Err(err).Str("task_execution", id).Msg("Unusable task execution metadata")
		if errors.Is(err, ErrIncompleteMetadata) {
			capability.MarkFailed(ctx, d.store, id, capability.NoteDispatcher, "Metadata incompleta o inválida.")
		}
		return err
	}
	span.SetAttributes(telemetryAttrs(call)...)

	c, ok := d.registry.Get(call.Function)
	if !ok {
		log.Warn().Str("task_execution", id).Str("function", call.Function).Msg("Unknown function in task execution")
		capability.MarkFailed(ctx, d.store, id, capability.NoteDispatcher, "Función desconocida: "+call.Function)
		d.post(ctx, call, fmt.Sprintf("No sé cómo procesar la acción: %s. Notificaré a un agente.", call.Function))
		return fmt.Errorf("%w: %s", ErrUnknownCapability, call.Function)
	}

	inv, err := c.Bind(ctx, call)
	if err != nil {
		reason := failureReason(err)
		capability.MarkFailed(ctx, d.store, id, capability.NoteDispatcher, failureNote(err))
		d.post(ctx, call, reason)
		return fmt.Errorf("%w: %s: %v", ErrInvalidArguments, call.Function, err)
	}

	out, err := inv.Execute(ctx)
	if err != nil {
		var f *capability.Failure
		if !errors.As(err, &f) {
			// Executors record their own notes; anything else was unexpected.
			capability.MarkFailed(ctx, d.store, id, capability.NoteDispatcher, err.Error())
		}
		log.Warn().Err(err).Str("task_execution", id).Str("function", call.Function).Msg("Capability failed")
		d.post(ctx, call, fmt.Sprintf("%s: %s", c.Apology(), failureReason(err)))
		return fmt.Errorf("%w: %s: %w", ErrExecutionFailed, call.Function, err)
	}

	if out != nil && strings.TrimSpace(out.Message) != "" {
		d.post(ctx, call, out.Message)
	} else {
		log.Info().Str("task_execution", id).Msg("Capability produced no message")
	}
	log.Info().Str("task_execution", id).Str("function", call.Function).Msg("Task execution dispatched")
	return nil
}

// post writes the result message. Failures are logged and swallowed.
func (d *Dispatcher) post(ctx context.Context, call capability.Call, text string) {
	log.Info().Str("task_execution", call.TaskExecutionID).Str("conversation", call.ConversationID).Msg("Posting result to conversation")
	if _, err := d.poster.Post(ctx, call.ConversationID, text, models.RoleAssistant); err != nil {
		log.Error().Err(err).Str("conversation", call.ConversationID).Msg("Failed to post result message")
	}
}

// parseMetadata validates the envelope written by the intake path.
func parseMetadata(te *models.TaskExecution) (capability.Call, error) {
	if strings.TrimSpace(te.Metadata) == "" {
		return capability.Call{}, fmt.Errorf("%w: empty metadata", ErrInvalidMetadata)
	}

	var raw any
	if err := json.Unmarshal([]byte(te.Metadata), &raw); err != nil {
		return capability.Call{}, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return capability.Call{}, fmt.Errorf("%w: metadata is not an object", ErrInvalidMetadata)
	}

	str := func(k string) string {
		s, _ := obj[k].(string)
		return s
	}
	args, _ := obj[models.MetaArguments].(map[string]any)
	call := capability.Call{
		TaskExecutionID: te.ID,
		Function:        str(models.MetaFunction),
		ConversationID:  str(models.MetaConversation),
		LeadID:          str(models.MetaLead),
		AssistantID:     str(models.MetaAssistant),
		Args:            args,
	}

	var missing []string
	for k, v := range map[string]string{
		models.MetaFunction:     call.Function,
		models.MetaConversation: call.ConversationID,
		models.MetaLead:         call.LeadID,
		models.MetaAssistant:    call.AssistantID,
	} {
		if v == "" {
			missing = append(missing, k)
		}
	}
	if args == nil {
		missing = append(missing, models.MetaArguments)
	}
	if len(missing) > 0 {
		return call, fmt.Errorf("%w: missing %s", ErrIncompleteMetadata, strings.Join(missing, ", "))
	}
	return call, nil
}

func failureReason(err error) string {
	var f *capability.Failure
	if errors.As(err, &f) && f.Reason != "" {
		return f.Reason
	}
	if err != nil {
		return err.Error()
	}
	return "Error desconocido."
}

// failureNote is the audit text of a bind failure, which may differ from
// what the user is told.
func failureNote(err error) string {
	var f *capability.Failure
	if errors.As(err, &f) && f.Note != "" {
		return f.Note
	}
	return failureReason(err)
}
