// Package intake records the model's function-call decisions as task
// executions. Calls are validated against the capability registry before
// anything is persisted, so the dispatcher only sees known shapes.
package intake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/israelwong/promediamx/internal/capability"
	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

var (
	ErrInvalidRequest    = errors.New("invalid function call request")
	ErrUnknownCapability = errors.New("unknown capability")
	ErrInvalidArguments  = errors.New("invalid capability arguments")
)

// Request is one function call emitted by the model plus the ids of the
// conversation it belongs to.
type Request struct {
	Call           *genai.FunctionCall
	TaskID         string
	ConversationID string
	LeadID         string
	AssistantID    string
}

// Service validates and persists function calls.
type Service struct {
	store    store.TaskExecutionStore
	registry *capability.Registry
	now      func() time.Time
}

func NewService(s store.TaskExecutionStore, r *capability.Registry) *Service {
	return &Service{store: s, registry: r, now: func() time.Time { return time.Now().UTC() }}
}

// Accept validates req and stores it as a pending task execution.
func (s *Service) Accept(ctx context.Context, req Request) (*models.TaskExecution, error) {
	if req.Call == nil || strings.TrimSpace(req.Call.Name) == "" {
		return nil, fmt.Errorf("%w: function name is required", ErrInvalidRequest)
	}
	var missing []string
	for k, v := range map[string]string{
		"conversation_id": req.ConversationID,
		"lead_id":         req.LeadID,
		"assistant_id":    req.AssistantID,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}

	c, ok := s.registry.Get(req.Call.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, req.Call.Name)
	}

	args := req.Call.Args
	if args == nil {
		args = map[string]any{}
	}
	id := uuid.NewString()
	call := capability.Call{
		TaskExecutionID: id,
		Function:        req.Call.Name,
		ConversationID:  req.ConversationID,
		LeadID:          req.LeadID,
		AssistantID:     req.AssistantID,
		Args:            args,
	}
	if _, err := c.Bind(ctx, call); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
	}

	meta, err := json.Marshal(models.CallEnvelope{
		Function:       req.Call.Name,
		Arguments:      args,
		ConversationID: req.ConversationID,
		LeadID:         req.LeadID,
		AssistantID:    req.AssistantID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: arguments not encodable: %v", ErrInvalidArguments, err)
	}

	now := s.now()
	te := &models.TaskExecution{
		ID:          id,
		TaskID:      req.TaskID,
		AssistantID: req.AssistantID,
		Metadata:    string(meta),
		Status:      models.TaskPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateTaskExecution(ctx, te); err != nil {
		return nil, fmt.Errorf("create task execution: %w", err)
	}

	log.Info().Str("task_execution", id).Str("function", req.Call.Name).
		Str("conversation", req.ConversationID).Msg("Function call recorded")
	return te, nil
}
