package executors

import (
	"context"
	"fmt"

	"github.com/israelwong/promediamx/internal/capability"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/rs/zerolog/log"
)

type AddressArgs struct {
	BusinessID string
}

// Address gives the business address and its map link.
type Address struct {
	deps Deps
}

func NewAddress(d Deps) *Address { return &Address{deps: d} }

func (a *Address) Capability() capability.Capability {
	return capability.New(NameAddress, "Lo siento, hubo un problema al obtener la dirección", a.Bind, a.Execute)
}

func (a *Address) Bind(ctx context.Context, call capability.Call) (AddressArgs, error) {
	businessID, err := resolveBusiness(ctx, a.deps.Store, call.AssistantID)
	if err != nil {
		return AddressArgs{}, err
	}
	return AddressArgs{BusinessID: businessID}, nil
}

func (a *Address) Execute(ctx context.Context, taskExecutionID string, args AddressArgs) (*capability.Outcome, error) {
	st := a.deps.Store
	biz, err := st.GetBusiness(ctx, args.BusinessID)
	if err != nil {
		note := fmt.Sprintf("Negocio %s no encontrado.", args.BusinessID)
		capability.MarkFailed(ctx, st, taskExecutionID, capability.NoteError, note)
		return nil, &capability.Failure{Reason: "Negocio no encontrado.", Note: note, Err: err}
	}
	if biz.Address == "" && biz.MapsURL == "" {
		f := capability.Failf("El negocio no tiene una dirección registrada.")
		capability.MarkFailed(ctx, st, taskExecutionID, capability.NoteError, f.Note)
		return nil, f
	}

	capability.MarkCompleted(ctx, st, taskExecutionID, map[string]any{
		"resultado_direccion": "Dirección proporcionada.",
	})
	log.Info().Str("task_execution", taskExecutionID).Str("business", biz.ID).Msg("Address given")
	return &capability.Outcome{Message: addressText(biz)}, nil
}

func addressText(biz *models.Business) string {
	switch {
	case biz.Address != "" && biz.MapsURL != "":
		return fmt.Sprintf("Nuestra dirección es: %s.\nPuedes encontrarnos en Google Maps: %s", biz.Address, biz.MapsURL)
	case biz.Address != "":
		return fmt.Sprintf("Nuestra dirección es: %s.", biz.Address)
	default:
		return fmt.Sprintf("Puedes encontrarnos en Google Maps: %s", biz.MapsURL)
	}
}
