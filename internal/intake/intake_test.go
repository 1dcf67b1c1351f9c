package intake_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/israelwong/promediamx/internal/capability"
	"github.com/israelwong/promediamx/internal/executors"
	"github.com/israelwong/promediamx/internal/intake"
	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func newService(t *testing.T) (*intake.Service, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore("")
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.UpsertAssistant(context.Background(), &models.Assistant{ID: "a1", BusinessID: "b1"}))

	reg := capability.NewRegistry()
	executors.RegisterBuiltins(reg, executors.Deps{Store: s})
	return intake.NewService(s, reg), s
}

func request(name string, args map[string]any) intake.Request {
	return intake.Request{
		Call:           &genai.FunctionCall{Name: name, Args: args},
		ConversationID: "c1",
		LeadID:         "l1",
		AssistantID:    "a1",
	}
}

func TestAccept_PersistsEnvelope(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	te, err := svc.Accept(ctx, request(executors.NameSchedule, map[string]any{
		"fecha_hora": "2025-03-10T15:00:00.000Z",
		"grado":      "3",
	}))
	require.NoError(t, err)
	assert.Equal(t, models.TaskPending, te.Status)

	stored, err := s.GetTaskExecution(ctx, te.ID)
	require.NoError(t, err)

	var env models.CallEnvelope
	require.NoError(t, json.Unmarshal([]byte(stored.Metadata), &env))
	assert.Equal(t, executors.NameSchedule, env.Function)
	assert.Equal(t, "c1", env.ConversationID)
	assert.Equal(t, "l1", env.LeadID)
	assert.Equal(t, "a1", env.AssistantID)
	assert.Equal(t, "3", env.Arguments["grado"])

	// Keys must match what the dispatcher reads.
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(stored.Metadata), &raw))
	for _, k := range []string{models.MetaFunction, models.MetaArguments, models.MetaConversation, models.MetaLead, models.MetaAssistant} {
		assert.Contains(t, raw, k)
	}
}

func TestAccept_NilArgsBecomeEmptyObject(t *testing.T) {
	svc, s := newService(t)
	te, err := svc.Accept(context.Background(), request(executors.NameAddress, nil))
	require.NoError(t, err)

	stored, _ := s.GetTaskExecution(context.Background(), te.ID)
	assert.Contains(t, stored.Metadata, `"argumentos":{}`)
}

func TestAccept_Rejections(t *testing.T) {
	svc, _ := newService(t)

	noLead := request(executors.NameAddress, nil)
	noLead.LeadID = ""

	tests := []struct {
		name string
		req  intake.Request
		want error
	}{
		{"no call", intake.Request{ConversationID: "c1", LeadID: "l1", AssistantID: "a1"}, intake.ErrInvalidRequest},
		{"missing lead", noLead, intake.ErrInvalidRequest},
		{"unknown function", request("enviarCohete", nil), intake.ErrUnknownCapability},
		{"missing date", request(executors.NameSchedule, map[string]any{"fecha_hora": 12}), intake.ErrInvalidArguments},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Accept(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAccept_ArgumentFailureKeepsReason(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Accept(context.Background(), request(executors.NameSchedule, map[string]any{}))
	var f *capability.Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "Error: Falta la fecha y hora para agendar la cita.", f.Reason)
}
