// Package agenda manages CRM appointments outside of the assistant flow.
// A lead may hold at most one pending entry at a time.
package agenda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidEntry  = errors.New("invalid agenda entry")
	ErrPendingExists = errors.New("lead already has a pending agenda entry")
	ErrInvalidStatus = errors.New("invalid agenda status")
	ErrLeadNotFound  = errors.New("lead not found")
	ErrEntryNotFound = errors.New("agenda entry not found")
)

// Store is the slice of store.Store the service needs.
type Store interface {
	store.LeadStore
	store.AgendaStore
}

// Service creates and updates agenda entries.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(s Store) *Service {
	return &Service{store: s, now: func() time.Time { return time.Now().UTC() }}
}

// Create validates and stores a new pending entry for a.LeadID. The pending
// check is read-then-create and is not atomic across concurrent callers.
func (s *Service) Create(ctx context.Context, a *models.Agenda) error {
	if strings.TrimSpace(a.LeadID) == "" {
		return fmt.Errorf("%w: lead_id is required", ErrInvalidEntry)
	}
	if strings.TrimSpace(a.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidEntry)
	}
	if a.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidEntry)
	}

	lead, err := s.store.GetLead(ctx, a.LeadID)
	if err != nil {
		if store.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrLeadNotFound, a.LeadID)
		}
		return fmt.Errorf("load lead: %w", err)
	}

	pending, err := s.store.ListAgenda(ctx, store.AgendaFilter{LeadID: a.LeadID, Status: models.AgendaPending})
	if err != nil {
		return fmt.Errorf("list agenda: %w", err)
	}
	if len(pending) > 0 {
		return fmt.Errorf("%w: %s", ErrPendingExists, pending[0].ID)
	}

	now := s.now()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CRMID == "" {
		a.CRMID = lead.CRMID
	}
	if a.Type == "" {
		a.Type = models.AgendaOtherType
	}
	a.Status = models.AgendaPending
	a.CreatedAt = now
	a.UpdatedAt = now

	if err := s.store.CreateAgenda(ctx, a); err != nil {
		return fmt.Errorf("create agenda: %w", err)
	}
	log.Info().Str("agenda", a.ID).Str("lead", a.LeadID).Time("date", a.Date).Msg("Agenda entry created")
	return nil
}

// List returns the entries of a lead, optionally filtered by status.
func (s *Service) List(ctx context.Context, leadID string, status models.AgendaStatus) ([]models.Agenda, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.store.ListAgenda(ctx, store.AgendaFilter{LeadID: leadID, Status: status})
}

// SetStatus moves an entry to status. Reopening an entry is subject to
// the same one-pending-per-lead rule as creation.
func (s *Service) SetStatus(ctx context.Context, id string, status models.AgendaStatus) (*models.Agenda, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	a, err := s.store.GetAgenda(ctx, id)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		return nil, fmt.Errorf("load agenda: %w", err)
	}
	if a.Status == status {
		return a, nil
	}

	if status == models.AgendaPending {
		pending, err := s.store.ListAgenda(ctx, store.AgendaFilter{LeadID: a.LeadID, Status: models.AgendaPending})
		if err != nil {
			return nil, fmt.Errorf("list agenda: %w", err)
		}
		if len(pending) > 0 {
			return nil, fmt.Errorf("%w: %s", ErrPendingExists, pending[0].ID)
		}
	}

	a.Status = status
	a.UpdatedAt = s.now()
	if err := s.store.UpdateAgenda(ctx, a); err != nil {
		return nil, fmt.Errorf("update agenda: %w", err)
	}
	log.Info().Str("agenda", id).Str("status", string(status)).Msg("Agenda status changed")
	return a, nil
}
