// Package messages posts system-generated chat messages into conversations.
package messages

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
	// ErrInvalidMessage is returned for empty ids or text, or a role other
	// than assistant or system.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrPersistence wraps any store failure.
	ErrPersistence = errors.New("message persistence failed")
)

// Store is the slice of store.Store the writer needs.
type Store interface {
	store.ConversationStore
	store.InteractionStore
}

// Poster is what the dispatcher depends on.
type Poster interface {
	Post(ctx context.Context, conversationID, text string, role models.Role) (*models.Interaction, error)
}

// Writer appends interactions and bumps the conversation timestamp.
// Calls are not deduplicated: two identical posts create two rows.
type Writer struct {
	store Store
	now   func() time.Time
}

// NewWriter creates a Writer over s.
func NewWriter(s Store) *Writer {
	return &Writer{store: s, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the timestamp source. Used by tests.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

// Post creates one Interaction authored by role.
func (w *Writer) Post(ctx context.Context, conversationID, text string, role models.Role) (*models.Interaction, error) {
	if strings.TrimSpace(conversationID) == "" || strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: conversation id and text are required", ErrInvalidMessage)
	}
	if role != models.RoleAssistant && role != models.RoleSystem {
		return nil, fmt.Errorf("%w: role %q not allowed", ErrInvalidMessage, role)
	}

	at := w.now()
	msg := &models.Interaction{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Message:        text,
		CreatedAt:      at,
	}
	if err := w.store.CreateInteraction(ctx, msg); err != nil {
		log.Error().Err(err).Str("conversation", conversationID).Msg("Failed to create interaction")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := w.store.TouchConversation(ctx, conversationID, at); err != nil {
		log.Error().Err(err).Str("conversation", conversationID).Msg("Failed to bump conversation timestamp")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	log.Debug().Str("conversation", conversationID).Str("interaction", msg.ID).Str("role", string(role)).Msg("Message posted")
	return msg, nil
}
