package executors

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/goodsign/monday"
	"github.com/israelwong/promediamx/internal/capability"
	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/rs/zerolog/log"
)

// Argument names of the offer capabilities.
const (
	ArgOfferName = "nombre_de_la_oferta"
	ArgOfferID   = "oferta_id"
)

// maxListedOffers caps how many offers mostrarOfertas announces.
const maxListedOffers = 5

// Channel names that change how offer details are rendered.
const (
	channelWebChat  = "web chat"
	channelWebChat2 = "webchat"
	channelWhatsApp = "whatsapp"
)

// activeOffers returns the offers of a business valid at the given time,
// newest first.
func activeOffers(ctx context.Context, s store.OfferStore, businessID string, d Deps) ([]models.Offer, error) {
	all, err := s.ListOffers(ctx, businessID)
	if err != nil {
		return nil, err
	}
	now := d.now()
	var active []models.Offer
	for _, o := range all {
		if o.ActiveAt(now) {
			active = append(active, o)
		}
	}
	return active, nil
}

func offerDate(d Deps, t time.Time) string {
	return monday.Format(t.In(d.loc()), "2 de January de 2006", monday.LocaleEsES)
}

// ── mostrarOfertas ──────────────────────────────────────────

type ShowOffersArgs struct {
	BusinessID string
}

// ShowOffers lists the offers currently running.
type ShowOffers struct {
	deps Deps
}

func NewShowOffers(d Deps) *ShowOffers { return &ShowOffers{deps: d} }

func (s *ShowOffers) Capability() capability.Capability {
	return capability.New(NameShowOffers, "Lo siento, hubo un problema al consultar las ofertas", s.Bind, s.Execute)
}

func (s *ShowOffers) Bind(ctx context.Context, call capability.Call) (ShowOffersArgs, error) {
	a, err := resolveAssistant(ctx, s.deps.Store, call.AssistantID,
		"Error interno: No se pudo encontrar el negocio asociado al asistente para mostrar ofertas.")
	if err != nil {
		return ShowOffersArgs{}, err
	}
	return ShowOffersArgs{BusinessID: a.BusinessID}, nil
}

func (s *ShowOffers) Execute(ctx context.Context, taskExecutionID string, args ShowOffersArgs) (*capability.Outcome, error) {
	st := s.deps.Store
	offers, err := activeOffers(ctx, st, args.BusinessID, s.deps)
	if err != nil {
		note := "Error interno al obtener las ofertas: " + err.Error()
		capability.MarkFailed(ctx, st, taskExecutionID, capability.NoteError, note)
		return nil, &capability.Failure{Reason: "Error interno al obtener las ofertas.", Note: note, Err: err}
	}
	if len(offers) > maxListedOffers {
		offers = offers[:maxListedOffers]
	}

	capability.MarkCompleted(ctx, st, taskExecutionID, map[string]any{
		"resultado": map[string]any{"ofertasEncontradas": len(offers)},
	})
	log.Info().Str("task_execution", taskExecutionID).Str("business", args.BusinessID).
		Int("offers", len(offers)).Msg("Offers listed")

	return &capability.Outcome{Message: offerList(offers)}, nil
}

func offerList(offers []models.Offer) string {
	switch len(offers) {
	case 0:
		return "Por el momento no tenemos ofertas o promociones especiales activas. ¡Vuelve a consultarnos pronto!"
	case 1:
		o := offers[0]
		var teaser string
		if o.Description != "" {
			teaser = truncateRunes(o.Description, 100) + "... "
		}
		return fmt.Sprintf("¡Tenemos una oferta especial para ti! Se llama \"%s\". %s¿Te gustaría saber más detalles o aceptarla?", o.Name, teaser)
	}

	var sb strings.Builder
	sb.WriteString("¡Buenas noticias! Tenemos estas ofertas especiales disponibles:\n")
	for i, o := range offers {
		fmt.Fprintf(&sb, "%d. \"%s\"\n", i+1, o.Name)
	}
	sb.WriteString("\n¿Te gustaría conocer los detalles de alguna en particular? Puedes decirme el nombre o número.")
	return sb.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// ── mostrarDetalleOferta ────────────────────────────────────

type OfferDetailArgs struct {
	BusinessID string
	Channel    string
	Query      string // offer id or part of its name
}

// OfferDetail describes one running offer, matched by id or name.
type OfferDetail struct {
	deps Deps
}

func NewOfferDetail(d Deps) *OfferDetail { return &OfferDetail{deps: d} }

func (o *OfferDetail) Capability() capability.Capability {
	return capability.New(NameOfferDetail, "Lo siento, hubo un problema al obtener los detalles de la oferta", o.Bind, o.Execute)
}

func (o *OfferDetail) Bind(ctx context.Context, call capability.Call) (OfferDetailArgs, error) {
	a, err := resolveAssistant(ctx, o.deps.Store, call.AssistantID,
		"Error interno: No se pudo encontrar el negocio asociado para detallar la oferta.")
	if err != nil {
		return OfferDetailArgs{}, err
	}
	query := strings.TrimSpace(call.Args.String(ArgOfferName))
	if query == "" {
		return OfferDetailArgs{}, &capability.Failure{
			Reason: "No especificaste claramente qué oferta te interesa. ¿Podrías indicarme el nombre?",
			Note:   "Falta el parámetro 'nombre_de_la_oferta' en los argumentos de IA.",
		}
	}
	return OfferDetailArgs{BusinessID: a.BusinessID, Channel: a.Channel, Query: query}, nil
}

// Execute answers with the offer details. An unknown offer is still
// answered, but the task execution is recorded as failed.
func (o *OfferDetail) Execute(ctx context.Context, taskExecutionID string, args OfferDetailArgs) (*capability.Outcome, error) {
	st := o.deps.Store
	offers, err := activeOffers(ctx, st, args.BusinessID, o.deps)
	if err != nil {
		note := "Error en mostrarDetalleOferta: " + err.Error()
		capability.MarkFailed(ctx, st, taskExecutionID, capability.NoteError, note)
		return nil, &capability.Failure{Reason: "Error interno al obtener los detalles de la oferta.", Note: note, Err: err}
	}

	offer := matchOffer(offers, args.Query)
	if offer == nil {
		capability.MarkFailed(ctx, st, taskExecutionID, capability.NoteError,
			"Error en mostrarDetalleOferta: Oferta no encontrada para identificador: "+args.Query)
		log.Info().Str("task_execution", taskExecutionID).Str("query", args.Query).Msg("Offer not matched")
		return &capability.Outcome{Message: fmt.Sprintf(
			"Lo siento, no pude encontrar una oferta activa que coincida con \"%s\". ¿Quizás quisiste decir otra o te gustaría ver la lista de ofertas disponibles?",
			args.Query)}, nil
	}

	capability.MarkCompleted(ctx, st, taskExecutionID, map[string]any{
		"resultado": map[string]any{"ofertaId": offer.ID},
	})
	log.Info().Str("task_execution", taskExecutionID).Str("offer", offer.ID).Msg("Offer detail given")
	return &capability.Outcome{Message: o.describe(offer, args.Channel)}, nil
}

// matchOffer prefers an exact id, then the first name containing query.
func matchOffer(offers []models.Offer, query string) *models.Offer {
	for i := range offers {
		if offers[i].ID == query {
			return &offers[i]
		}
	}
	q := strings.ToLower(query)
	for i := range offers {
		if strings.Contains(strings.ToLower(offers[i].Name), q) {
			return &offers[i]
		}
	}
	return nil
}

func (o *OfferDetail) describe(offer *models.Offer, channel string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "¡Claro! Aquí tienes los detalles de la oferta \"%s\" (ID: %s):\n", offer.Name, offer.ID)
	if offer.Description != "" {
		sb.WriteString(offer.Description + "\n")
	}
	fmt.Fprintf(&sb, "Válida desde el %s hasta el %s.\n", offerDate(o.deps, offer.StartsAt), offerDate(o.deps, offer.EndsAt))
	if offer.Conditions != "" {
		sb.WriteString("Condiciones: " + offer.Conditions + "\n")
	}
	if offer.Code != "" {
		sb.WriteString("Puedes usar el código: " + offer.Code + "\n")
	}

	if len(offer.Images) > 0 {
		switch strings.ToLower(strings.TrimSpace(channel)) {
		case channelWebChat:
			sb.WriteString("<br><br>Imágenes:<br>")
			for _, img := range offer.Images {
				alt := img.AltText
				if alt == "" {
					alt = offer.Name
				}
				u, a := html.EscapeString(img.URL), html.EscapeString(alt)
				fmt.Fprintf(&sb, `<a href="%s" class="chat-image-lightbox-trigger" data-alt="%s" target="_blank" rel="noopener noreferrer">`+
					`<img src="%s" alt="%s" style="max-width:200px; margin:5px; height:auto; cursor:pointer; border-radius: 4px;"></a><br>`,
					u, a, u, a)
				if img.Description != "" {
					sb.WriteString(html.EscapeString(img.Description) + "<br>")
				}
			}
		case channelWhatsApp:
			sb.WriteString("\nImágenes disponibles:\n")
			for _, img := range offer.Images {
				sb.WriteString("- " + img.URL + "\n")
			}
			sb.WriteString("(En WhatsApp, las imágenes se enviarían por separado o mediante una plantilla específica).\n")
		default:
			fmt.Fprintf(&sb, "\nEsta oferta tiene %d imagen(es).\n", len(offer.Images))
		}
	}

	sb.WriteString("\n¿Esta información te es útil? ¿Te gustaría aprovechar esta oferta o tienes más preguntas?")
	return sb.String()
}

// ── aceptarOferta ───────────────────────────────────────────

type AcceptOfferArgs struct {
	BusinessID string
	Channel    string
	OfferID    string
}

// AcceptOffer hands the lead the offer's payment link, or promises a
// follow-up from an agent when the offer has none.
type AcceptOffer struct {
	deps Deps
}

func NewAcceptOffer(d Deps) *AcceptOffer { return &AcceptOffer{deps: d} }

func (a *AcceptOffer) Capability() capability.Capability {
	return capability.New(NameAcceptOffer, "Lo siento, hubo un problema al intentar procesar tu aceptación de la oferta", a.Bind, a.Execute)
}

func (a *AcceptOffer) Bind(ctx context.Context, call capability.Call) (AcceptOfferArgs, error) {
	asst, err := resolveAssistant(ctx, a.deps.Store, call.AssistantID,
		"Error interno: No se pudo encontrar el negocio asociado para procesar la oferta.")
	if err != nil {
		return AcceptOfferArgs{}, err
	}
	id := strings.TrimSpace(call.Args.String(ArgOfferID))
	if id == "" {
		return AcceptOfferArgs{}, &capability.Failure{
			Reason: "No pude identificar claramente qué oferta deseas aceptar. ¿Podrías intentarlo de nuevo especificando la oferta?",
			Note:   "Falta el parámetro 'oferta_id' en los argumentos de IA para aceptarOferta.",
		}
	}
	return AcceptOfferArgs{BusinessID: asst.BusinessID, Channel: asst.Channel, OfferID: id}, nil
}

// Execute answers with the next step. Unknown and expired offers are
// answered too, with the task execution recorded as failed.
func (a *AcceptOffer) Execute(ctx context.Context, taskExecutionID string, args AcceptOfferArgs) (*capability.Outcome, error) {
	st := a.deps.Store
	offer, err := st.GetOffer(ctx, args.OfferID)
	if err != nil && !store.IsNotFound(err) {
		note := "Error en aceptarOferta: " + err.Error()
		capability.MarkFailed(ctx, st, taskExecutionID, capability.NoteError, note)
		return nil, &capability.Failure{Reason: "Error interno al procesar tu solicitud para la oferta.", Note: note, Err: err}
	}
	if err != nil || offer.BusinessID != args.BusinessID {
		capability.MarkFailed(ctx, st, taskExecutionID, capability.NoteError,
			fmt.Sprintf("Error en aceptarOferta: Oferta con ID %s no encontrada para el negocio.", args.OfferID))
		return &capability.Outcome{Message: "Lo siento, no pude encontrar la oferta que mencionaste. Quizás ya no está disponible."}, nil
	}
	if !offer.ActiveAt(a.deps.now()) {
		capability.MarkFailed(ctx, st, taskExecutionID, capability.NoteError,
			fmt.Sprintf("Error en aceptarOferta: Oferta %s (ID: %s) no está activa o está fuera de vigencia.", offer.Name, offer.ID))
		return &capability.Outcome{Message: fmt.Sprintf(
			"Lo siento, la oferta \"%s\" ya no se encuentra disponible o está fuera de su periodo de vigencia.", offer.Name)}, nil
	}

	capability.MarkCompleted(ctx, st, taskExecutionID, map[string]any{
		"resultado": map[string]any{"ofertaId": offer.ID, "linkProporcionado": offer.PaymentLink != ""},
	})
	log.Info().Str("task_execution", taskExecutionID).Str("offer", offer.ID).
		Bool("payment_link", offer.PaymentLink != "").Msg("Offer accepted")
	return &capability.Outcome{Message: nextStep(offer, args.Channel)}, nil
}

func nextStep(offer *models.Offer, channel string) string {
	if offer.PaymentLink == "" {
		return fmt.Sprintf("¡Genial que quieras aprovechar la oferta \"%s\"! Para continuar, un asesor se pondrá en contacto contigo a la brevedad para ayudarte a completarla.", offer.Name)
	}
	switch strings.ToLower(strings.TrimSpace(channel)) {
	case channelWebChat, channelWebChat2:
		return fmt.Sprintf(`¡Excelente! Puedes completar tu compra o activar la oferta "%s" directamente haciendo clic aquí: `+
			`<a href="%s" target="_blank" rel="noopener noreferrer" style="color: #60a5fa; text-decoration: underline;">Ir al pago seguro</a>. Avísame si tienes algún problema.`,
			offer.Name, html.EscapeString(offer.PaymentLink))
	default:
		return fmt.Sprintf("¡Excelente! Puedes completar tu compra o activar la oferta \"%s\" directamente en este enlace de pago seguro: %s", offer.Name, offer.PaymentLink)
	}
}
