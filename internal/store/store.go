// Package store provides the storage interface and implementations for the
// promediamx control plane. The in-memory store backs local development and
// tests; PostgreSQL (pgx) backs production.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/israelwong/promediamx/pkg/models"
)

// Store is the primary storage interface. Dispatcher, executors and handlers
// receive it (or one of its parts) explicitly; there is no global client.
type Store interface {
	TaskExecutionStore
	ConversationStore
	InteractionStore
	LeadStore
	AgendaStore
	BusinessStore
	AssistantStore
	CapabilityStore
	OfferStore

	// Ping checks if the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error

	// Migrate runs database migrations.
	Migrate(ctx context.Context) error
}

// ── Task Execution Store ────────────────────────────────────

// TaskExecutionStore persists the append-only audit trail of AI-triggered actions.
type TaskExecutionStore interface {
	CreateTaskExecution(ctx context.Context, te *models.TaskExecution) error
	GetTaskExecution(ctx context.Context, id string) (*models.TaskExecution, error)

	// UpdateTaskExecutionMetadata replaces the metadata blob and status.
	UpdateTaskExecutionMetadata(ctx context.Context, id, metadata string, status models.TaskStatus) error
}

// ── Conversation Store ──────────────────────────────────────

type ConversationStore interface {
	CreateConversation(ctx context.Context, c *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)

	// TouchConversation bumps the conversation's UpdatedAt.
	TouchConversation(ctx context.Context, id string, at time.Time) error
}

// ── Interaction Store ───────────────────────────────────────

type InteractionStore interface {
	CreateInteraction(ctx context.Context, in *models.Interaction) error

	// ListInteractions returns messages oldest first. limit <= 0 means all.
	ListInteractions(ctx context.Context, conversationID string, limit int) ([]models.Interaction, error)
}

// ── Lead Store ──────────────────────────────────────────────

type LeadStore interface {
	CreateLead(ctx context.Context, lead *models.Lead) error
	GetLead(ctx context.Context, id string) (*models.Lead, error)
	UpdateLead(ctx context.Context, lead *models.Lead) error
}

// ── Agenda Store ────────────────────────────────────────────

// AgendaFilter defines optional filters for listing agenda entries.
type AgendaFilter struct {
	LeadID string
	Status models.AgendaStatus
	From   *time.Time
	To     *time.Time
}

type AgendaStore interface {
	CreateAgenda(ctx context.Context, a *models.Agenda) error
	GetAgenda(ctx context.Context, id string) (*models.Agenda, error)
	UpdateAgenda(ctx context.Context, a *models.Agenda) error
	ListAgenda(ctx context.Context, filter AgendaFilter) ([]models.Agenda, error)
}

// ── Business Store ──────────────────────────────────────────

type BusinessStore interface {
	UpsertBusiness(ctx context.Context, b *models.Business) error
	GetBusiness(ctx context.Context, id string) (*models.Business, error)

	// SetBusinessHours replaces the regular hours of a business.
	SetBusinessHours(ctx context.Context, businessID string, hours []models.BusinessHours) error
	ListBusinessHours(ctx context.Context, businessID string) ([]models.BusinessHours, error)

	AddHoursException(ctx context.Context, ex *models.HoursException) error
	// ListHoursExceptions returns exceptions within [from, to], ordered by date.
	ListHoursExceptions(ctx context.Context, businessID string, from, to time.Time) ([]models.HoursException, error)
}

// ── Assistant Store ─────────────────────────────────────────

type AssistantStore interface {
	UpsertAssistant(ctx context.Context, a *models.Assistant) error
	GetAssistant(ctx context.Context, id string) (*models.Assistant, error)
}

// ── Capability Store ────────────────────────────────────────

type CapabilityStore interface {
	UpsertCapability(ctx context.Context, c *models.Capability) error
	GetCapability(ctx context.Context, id string) (*models.Capability, error)
	ListCapabilities(ctx context.Context) ([]models.Capability, error)
}

// ── Offer Store ─────────────────────────────────────────────

type OfferStore interface {
	UpsertOffer(ctx context.Context, o *models.Offer) error
	GetOffer(ctx context.Context, id string) (*models.Offer, error)

	// ListOffers returns the offers of a business, newest first.
	ListOffers(ctx context.Context, businessID string) ([]models.Offer, error)
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// IsNotFound reports whether err is (or wraps) an *ErrNotFound.
func IsNotFound(err error) bool {
	var nf *ErrNotFound
	return errors.As(err, &nf)
}
