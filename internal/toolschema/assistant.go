package toolschema

import (
	"context"
	"fmt"

	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Catalog is the slice of store.Store needed to resolve an assistant's tools.
type Catalog interface {
	store.AssistantStore
	store.CapabilityStore
}

// ForAssistant builds the tools of the capabilities the assistant is
// subscribed to. Subscriptions to missing capabilities are skipped.
func ForAssistant(ctx context.Context, s Catalog, assistantID string) ([]*genai.Tool, error) {
	a, err := s.GetAssistant(ctx, assistantID)
	if err != nil {
		return nil, fmt.Errorf("load assistant: %w", err)
	}

	caps := make([]models.Capability, 0, len(a.Capabilities))
	for _, id := range a.Capabilities {
		c, err := s.GetCapability(ctx, id)
		if err != nil {
			if store.IsNotFound(err) {
				log.Warn().Str("assistant", assistantID).Str("capability", id).Msg("Subscribed capability not found")
				continue
			}
			return nil, fmt.Errorf("load capability %s: %w", id, err)
		}
		caps = append(caps, *c)
	}
	return Build(caps), nil
}
