// Package executors implements the capabilities the assistant can trigger:
// scheduling an in-person appointment, answering business questions and
// presenting the business's offers.
package executors

import (
	"context"
	"time"

	"github.com/israelwong/promediamx/internal/capability"
	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/rs/zerolog/log"
)

// Function names declared to the model.
const (
	NameSchedule     = "agendarCitaPresencial"
	NameBusinessInfo = "brindarInformacionDelNegocio"
	NameHours        = "informarHorarioDeAtencion"
	NameAddress      = "darDireccionYUbicacion"
	NameShowOffers   = "mostrarOfertas"
	NameOfferDetail  = "mostrarDetalleOferta"
	NameAcceptOffer  = "aceptarOferta"
)

// Deps are the collaborators shared by every executor.
type Deps struct {
	Store    store.Store
	Location *time.Location   // zone for user-facing dates
	Assignee string           // agent id set on AI-created appointments
	Now      func() time.Time // defaults to time.Now
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) loc() *time.Location {
	if d.Location != nil {
		return d.Location
	}
	return time.UTC
}

// RegisterBuiltins registers every executor in r.
func RegisterBuiltins(r *capability.Registry, d Deps) {
	r.MustRegister(
		NewScheduler(d).Capability(),
		NewBusinessInfo(d).Capability(),
		NewHours(d).Capability(),
		NewAddress(d).Capability(),
		NewShowOffers(d).Capability(),
		NewOfferDetail(d).Capability(),
		NewAcceptOffer(d).Capability(),
	)
}

// resolveBusiness finds the business the assistant speaks for. A missing
// assistant or business link is a bind failure shown to the user verbatim.
func resolveBusiness(ctx context.Context, s store.AssistantStore, assistantID string) (string, error) {
	a, err := resolveAssistant(ctx, s, assistantID, "Error interno: No se pudo encontrar el negocio asociado.")
	if err != nil {
		return "", err
	}
	return a.BusinessID, nil
}

// resolveAssistant loads the assistant and checks it is linked to a
// business. reason is what the user is told when it is not.
func resolveAssistant(ctx context.Context, s store.AssistantStore, assistantID, reason string) (*models.Assistant, error) {
	a, err := s.GetAssistant(ctx, assistantID)
	if err != nil || a.BusinessID == "" {
		if err != nil && !store.IsNotFound(err) {
			log.Error().Err(err).Str("assistant", assistantID).Msg("Assistant lookup failed")
		}
		return nil, capability.Failf("%s", reason)
	}
	return a, nil
}
