// Package handlers implements the HTTP handlers of the promediamx control
// plane: task execution intake and dispatch, conversation messages, the
// CRM agenda and per-assistant tool declarations.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/israelwong/promediamx/internal/agenda"
	"github.com/israelwong/promediamx/internal/capability"
	"github.com/israelwong/promediamx/internal/dispatcher"
	"github.com/israelwong/promediamx/internal/intake"
	"github.com/israelwong/promediamx/internal/messages"
	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/internal/toolschema"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Store        store.Store
	Registry     *capability.Registry
	Intake       *intake.Service
	Dispatcher   *dispatcher.Dispatcher
	Messages     *messages.Writer
	Agenda       *agenda.Service
	HistoryLimit int
}

// New wires the services on top of s and the capability registry r.
func New(s store.Store, r *capability.Registry, historyLimit int) *Handlers {
	w := messages.NewWriter(s)
	return &Handlers{
		Store:        s,
		Registry:     r,
		Intake:       intake.NewService(s, r),
		Dispatcher:   dispatcher.New(s, r, w),
		Messages:     w,
		Agenda:       agenda.NewService(s),
		HistoryLimit: historyLimit,
	}
}

// ══════════════════════════════════════════════════════════════
// ── Task Executions ──────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

type createTaskExecutionRequest struct {
	FunctionCall   *genai.FunctionCall `json:"function_call"`
	TaskID         string              `json:"task_id"`
	ConversationID string              `json:"conversation_id"`
	LeadID         string              `json:"lead_id"`
	AssistantID    string              `json:"assistant_id"`
}

type dispatchResponse struct {
	TaskExecution *models.TaskExecution `json:"task_execution"`
	Error         string                `json:"error,omitempty"`
}

// CreateTaskExecution records a function call. With ?dispatch=true it is
// dispatched before responding.
func (h *Handlers) CreateTaskExecution(w http.ResponseWriter, r *http.Request) {
	var req createTaskExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	te, err := h.Intake.Accept(r.Context(), intake.Request{
		Call:           req.FunctionCall,
		TaskID:         req.TaskID,
		ConversationID: req.ConversationID,
		LeadID:         req.LeadID,
		AssistantID:    req.AssistantID,
	})
	if err != nil {
		respondError(w, intakeStatus(err), err.Error())
		return
	}

	if r.URL.Query().Get("dispatch") != "true" {
		respondJSON(w, http.StatusCreated, te)
		return
	}
	h.dispatch(w, r, te.ID, http.StatusCreated)
}

func (h *Handlers) GetTaskExecution(w http.ResponseWriter, r *http.Request) {
	te, err := h.Store.GetTaskExecution(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, te)
}

// DispatchTaskExecution runs a stored task execution.
func (h *Handlers) DispatchTaskExecution(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, chi.URLParam(r, "id"), http.StatusOK)
}

// dispatch runs the task execution and reports its final state. Capability
// failures are a handled outcome and still answer with okStatus.
func (h *Handlers) dispatch(w http.ResponseWriter, r *http.Request, id string, okStatus int) {
	derr := h.Dispatcher.Dispatch(r.Context(), id)
	status := dispatchStatus(derr, okStatus)
	if status >= 500 || status == http.StatusNotFound {
		respondError(w, status, derr.Error())
		return
	}

	te, err := h.Store.GetTaskExecution(r.Context(), id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	resp := dispatchResponse{TaskExecution: te}
	if derr != nil {
		resp.Error = derr.Error()
	}
	respondJSON(w, status, resp)
}

func intakeStatus(err error) int {
	switch {
	case errors.Is(err, intake.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, intake.ErrUnknownCapability), errors.Is(err, intake.ErrInvalidArguments):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func dispatchStatus(err error, okStatus int) int {
	switch {
	case err == nil:
		return okStatus
	case errors.Is(err, dispatcher.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, dispatcher.ErrInvalidMetadata), errors.Is(err, dispatcher.ErrIncompleteMetadata):
		return http.StatusUnprocessableEntity
	case errors.Is(err, dispatcher.ErrUnknownCapability),
		errors.Is(err, dispatcher.ErrInvalidArguments),
		errors.Is(err, dispatcher.ErrExecutionFailed):
		return okStatus
	}
	return http.StatusInternalServerError
}

// ══════════════════════════════════════════════════════════════
// ── Conversations ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Store.GetConversation(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}

	limit := h.HistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	msgs, err := h.Store.ListInteractions(r.Context(), id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []models.Interaction{}
	}
	respondJSON(w, http.StatusOK, msgs)
}

type postMessageRequest struct {
	Message string      `json:"message"`
	Role    models.Role `json:"role"`
}

// PostMessage appends an assistant or system message to a conversation.
func (h *Handlers) PostMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Role == "" {
		req.Role = models.RoleAssistant
	}
	if _, err := h.Store.GetConversation(r.Context(), id); err != nil {
		respondStoreError(w, err)
		return
	}

	msg, err := h.Messages.Post(r.Context(), id, req.Message, req.Role)
	if err != nil {
		if errors.Is(err, messages.ErrInvalidMessage) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// ══════════════════════════════════════════════════════════════
// ── Agenda ───────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) ListAgenda(w http.ResponseWriter, r *http.Request) {
	status := models.AgendaStatus(r.URL.Query().Get("status"))
	entries, err := h.Agenda.List(r.Context(), chi.URLParam(r, "leadId"), status)
	if err != nil {
		respondError(w, agendaStatus(err), err.Error())
		return
	}
	if entries == nil {
		entries = []models.Agenda{}
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handlers) CreateAgenda(w http.ResponseWriter, r *http.Request) {
	var a models.Agenda
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	a.LeadID = chi.URLParam(r, "leadId")

	if err := h.Agenda.Create(r.Context(), &a); err != nil {
		respondError(w, agendaStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

type agendaStatusRequest struct {
	Status models.AgendaStatus `json:"status"`
}

func (h *Handlers) UpdateAgendaStatus(w http.ResponseWriter, r *http.Request) {
	var req agendaStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	a, err := h.Agenda.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		respondError(w, agendaStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func agendaStatus(err error) int {
	switch {
	case errors.Is(err, agenda.ErrInvalidEntry), errors.Is(err, agenda.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, agenda.ErrLeadNotFound), errors.Is(err, agenda.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, agenda.ErrPendingExists):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// ══════════════════════════════════════════════════════════════
// ── Capabilities & Tools ─────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ListCapabilities returns the function names the dispatcher can execute.
func (h *Handlers) ListCapabilities(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{"functions": h.Registry.Names()})
}

// AssistantTools returns the function declarations to send to the model
// for an assistant. The list is empty when none of its capabilities is
// invocable.
func (h *Handlers) AssistantTools(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tools, err := toolschema.ForAssistant(r.Context(), h.Store, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	if tools == nil {
		tools = []*genai.Tool{}
	}
	respondJSON(w, http.StatusOK, tools)
}

// ══════════════════════════════════════════════════════════════
// ── Helpers ──────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondStoreError(w http.ResponseWriter, err error) {
	if store.IsNotFound(err) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}
