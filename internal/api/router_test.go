package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/israelwong/promediamx/internal/api"
	"github.com/israelwong/promediamx/internal/api/handlers"
	"github.com/israelwong/promediamx/internal/capability"
	"github.com/israelwong/promediamx/internal/config"
	"github.com/israelwong/promediamx/internal/executors"
	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	store   *store.MemoryStore
	handler http.Handler
}

func newTestServer(t *testing.T, apiKeys ...string) *testServer {
	t.Helper()
	s := store.NewMemoryStore("")
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	require.NoError(t, s.UpsertBusiness(ctx, &models.Business{
		ID: "b1", Name: "Colegio Norte", Address: "Av. Reforma 100, CDMX",
	}))
	require.NoError(t, s.UpsertCapability(ctx, &models.Capability{
		ID: "cap-dir", Function: &models.FunctionSpec{Name: executors.NameAddress, Description: "Da la dirección"},
	}))
	require.NoError(t, s.UpsertAssistant(ctx, &models.Assistant{ID: "a1", BusinessID: "b1", Capabilities: []string{"cap-dir"}}))
	require.NoError(t, s.CreateLead(ctx, &models.Lead{ID: "l1", CRMID: "crm1", Name: "Ana"}))
	require.NoError(t, s.CreateConversation(ctx, &models.Conversation{ID: "c1", LeadID: "l1", AssistantID: "a1", Status: models.ConversationOpen}))

	reg := capability.NewRegistry()
	executors.RegisterBuiltins(reg, executors.Deps{Store: s, Location: time.UTC})

	cfg := &config.Config{Version: "test"}
	cfg.Auth.APIKeys = apiKeys
	return &testServer{store: s, handler: api.NewRouter(cfg, handlers.New(s, reg, 50))}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func callBody(name string, args map[string]any) map[string]any {
	return map[string]any{
		"function_call":   map[string]any{"name": name, "args": args},
		"conversation_id": "c1",
		"lead_id":         "l1",
		"assistant_id":    "a1",
	}
}

func TestHealthAndVersion(t *testing.T) {
	ts := newTestServer(t, "secret")

	w := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/version", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var v map[string]string
	decode(t, w, &v)
	assert.Equal(t, "test", v["version"])
}

func TestAPIKeyRequired(t *testing.T) {
	ts := newTestServer(t, "secret")

	w := ts.do(t, http.MethodGet, "/api/v1/capabilities", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/capabilities", nil, "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateAndDispatchTaskExecution(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/task-executions", callBody(executors.NameAddress, nil))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var te models.TaskExecution
	decode(t, w, &te)
	assert.Equal(t, models.TaskPending, te.Status)

	w = ts.do(t, http.MethodGet, "/api/v1/task-executions/"+te.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/task-executions/"+te.ID+"/dispatch", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res struct {
		TaskExecution models.TaskExecution `json:"task_execution"`
		Error         string               `json:"error"`
	}
	decode(t, w, &res)
	assert.Equal(t, models.TaskCompleted, res.TaskExecution.Status)
	assert.Empty(t, res.Error)

	w = ts.do(t, http.MethodGet, "/api/v1/conversations/c1/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []models.Interaction
	decode(t, w, &msgs)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "Nuestra dirección es: Av. Reforma 100, CDMX.", msgs[0].Message)
}

func TestCreateTaskExecution_DispatchInline(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/task-executions?dispatch=true", callBody(executors.NameSchedule, map[string]any{
		"fecha_hora": "mañana a las 3",
	}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res struct {
		TaskExecution models.TaskExecution `json:"task_execution"`
		Error         string               `json:"error"`
	}
	decode(t, w, &res)
	assert.Equal(t, models.TaskFailed, res.TaskExecution.Status)
	assert.NotEmpty(t, res.Error)
}

func TestCreateTaskExecution_Rejected(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/task-executions", callBody("enviarCohete", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	body := callBody(executors.NameAddress, nil)
	delete(body, "lead_id")
	w = ts.do(t, http.MethodPost, "/api/v1/task-executions", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/task-executions/ghost/dispatch", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMessages(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/v1/conversations/c1/messages", map[string]string{"message": "Hola"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/v1/conversations/c1/messages", map[string]string{"message": "Hola", "role": "user"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/conversations/ghost/messages", map[string]string{"message": "Hola"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/conversations/c1/messages?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAgendaEndpoints(t *testing.T) {
	ts := newTestServer(t)
	entry := map[string]any{"subject": "Visita", "date": "2025-03-10T15:00:00Z"}

	w := ts.do(t, http.MethodPost, "/api/v1/leads/l1/agenda", entry)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var a models.Agenda
	decode(t, w, &a)
	assert.Equal(t, models.AgendaPending, a.Status)

	w = ts.do(t, http.MethodPost, "/api/v1/leads/l1/agenda", entry)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPatch, "/api/v1/agenda/"+a.ID+"/status", map[string]string{"status": "completada"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/leads/l1/agenda?status=completada", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Agenda
	decode(t, w, &list)
	assert.Len(t, list, 1)
}

func TestAssistantTools(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/v1/assistants/a1/tools", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), executors.NameAddress)

	w = ts.do(t, http.MethodGet, "/api/v1/assistants/ghost/tools", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
