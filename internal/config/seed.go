package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Seed is the YAML document loaded by LoadSeed. It preloads the catalog
// data (businesses, assistants, capabilities) and optional demo CRM records.
type Seed struct {
	Businesses    []SeedBusiness      `yaml:"businesses"`
	Capabilities  []models.Capability `yaml:"capabilities"`
	Assistants    []models.Assistant  `yaml:"assistants"`
	Leads         []SeedLead          `yaml:"leads"`
	Conversations []SeedConversation  `yaml:"conversations"`
}

type SeedBusiness struct {
	models.Business `yaml:",inline"`
	Hours           []models.BusinessHours  `yaml:"hours"`
	Exceptions      []models.HoursException `yaml:"exceptions"`
	Offers          []models.Offer          `yaml:"offers"`
}

type SeedLead struct {
	ID     string         `yaml:"id"`
	CRMID  string         `yaml:"crm_id"`
	Name   string         `yaml:"name"`
	Email  string         `yaml:"email"`
	Phone  string         `yaml:"phone"`
	Params map[string]any `yaml:"params"`
}

type SeedConversation struct {
	ID          string `yaml:"id"`
	LeadID      string `yaml:"lead_id"`
	AssistantID string `yaml:"assistant_id"`
}

// ParseSeed decodes a seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	return &seed, nil
}

// LoadSeed reads path and writes its contents into s. Catalog entries are
// upserted; leads and conversations are created only when absent.
func LoadSeed(ctx context.Context, path string, s store.Store) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed %s: %w", path, err)
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return err
	}
	if err := seed.Apply(ctx, s); err != nil {
		return err
	}
	log.Info().
		Str("path", path).
		Int("businesses", len(seed.Businesses)).
		Int("assistants", len(seed.Assistants)).
		Int("capabilities", len(seed.Capabilities)).
		Int("leads", len(seed.Leads)).
		Msg("Seed loaded")
	return nil
}

// Apply writes the seed into s.
func (seed *Seed) Apply(ctx context.Context, s store.Store) error {
	now := time.Now().UTC()

	for i := range seed.Businesses {
		b := &seed.Businesses[i]
		if b.ID == "" {
			return fmt.Errorf("seed business %d: missing id", i)
		}
		if err := s.UpsertBusiness(ctx, &b.Business); err != nil {
			return fmt.Errorf("seed business %s: %w", b.ID, err)
		}
		if len(b.Hours) > 0 {
			for j, h := range b.Hours {
				day, ok := models.ParseWeekday(string(h.Day))
				if !ok {
					return fmt.Errorf("seed business %s: unknown day %q", b.ID, h.Day)
				}
				b.Hours[j].Day = day
			}
			if err := s.SetBusinessHours(ctx, b.ID, b.Hours); err != nil {
				return fmt.Errorf("seed hours %s: %w", b.ID, err)
			}
		}
		for _, ex := range b.Exceptions {
			ex.BusinessID = b.ID
			if err := s.AddHoursException(ctx, &ex); err != nil {
				return fmt.Errorf("seed exception %s: %w", b.ID, err)
			}
		}
		for j := range b.Offers {
			o := &b.Offers[j]
			if o.ID == "" {
				return fmt.Errorf("seed business %s: offer %d missing id", b.ID, j)
			}
			o.BusinessID = b.ID
			if o.Status == "" {
				o.Status = models.OfferActive
			}
			if o.CreatedAt.IsZero() {
				o.CreatedAt = now
			}
			if err := s.UpsertOffer(ctx, o); err != nil {
				return fmt.Errorf("seed offer %s: %w", o.ID, err)
			}
		}
	}

	for i := range seed.Capabilities {
		c := &seed.Capabilities[i]
		if err := s.UpsertCapability(ctx, c); err != nil {
			return fmt.Errorf("seed capability %s: %w", c.ID, err)
		}
	}

	for i := range seed.Assistants {
		a := &seed.Assistants[i]
		if err := s.UpsertAssistant(ctx, a); err != nil {
			return fmt.Errorf("seed assistant %s: %w", a.ID, err)
		}
	}

	for _, l := range seed.Leads {
		if _, err := s.GetLead(ctx, l.ID); err == nil {
			continue
		}
		lead := &models.Lead{
			ID: l.ID, CRMID: l.CRMID, Name: l.Name, Email: l.Email, Phone: l.Phone,
			JSONParams: l.Params, CreatedAt: now, UpdatedAt: now,
		}
		if err := s.CreateLead(ctx, lead); err != nil {
			return fmt.Errorf("seed lead %s: %w", l.ID, err)
		}
	}

	for _, c := range seed.Conversations {
		if _, err := s.GetConversation(ctx, c.ID); err == nil {
			continue
		}
		conv := &models.Conversation{
			ID: c.ID, LeadID: c.LeadID, AssistantID: c.AssistantID,
			Status: models.ConversationOpen, CreatedAt: now, UpdatedAt: now,
		}
		if err := s.CreateConversation(ctx, conv); err != nil {
			return fmt.Errorf("seed conversation %s: %w", c.ID, err)
		}
	}
	return nil
}
