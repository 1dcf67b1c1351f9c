package executors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goodsign/monday"
	"github.com/google/uuid"
	"github.com/israelwong/promediamx/internal/capability"
	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/rs/zerolog/log"
)

// Argument names of agendarCitaPresencial.
const (
	ArgDateTime     = "fecha_hora"
	ArgContactName  = "nombre_contacto"
	ArgContactEmail = "email_contacto"
	ArgContactPhone = "telefono_contacto"
	ArgMeetingTopic = "motivo_de_reunion"
)

// ScheduleArgs are the typed arguments of agendarCitaPresencial. Extra holds
// every other key the model sent; it is merged into the lead's JSONParams.
type ScheduleArgs struct {
	LeadID       string
	DateTime     string
	ContactName  string
	ContactEmail string
	ContactPhone string
	Topic        string
	Extra        map[string]any
}

// Scheduler books in-person appointments for the lead of the conversation.
type Scheduler struct {
	deps Deps
}

func NewScheduler(d Deps) *Scheduler { return &Scheduler{deps: d} }

func (s *Scheduler) Capability() capability.Capability {
	return capability.New(NameSchedule, "Lo siento, hubo un problema al intentar agendar tu cita", s.Bind, s.Execute)
}

// Bind reads the arguments. A missing date is rejected here so no
// appointment work starts without one.
func (s *Scheduler) Bind(_ context.Context, call capability.Call) (ScheduleArgs, error) {
	args := ScheduleArgs{
		LeadID:       call.LeadID,
		DateTime:     call.Args.String(ArgDateTime),
		ContactName:  call.Args.String(ArgContactName),
		ContactEmail: call.Args.String(ArgContactEmail),
		ContactPhone: call.Args.String(ArgContactPhone),
		Topic:        call.Args.String(ArgMeetingTopic),
		Extra:        call.Args.Without("leadId", ArgDateTime, ArgContactName, ArgContactEmail, ArgContactPhone),
	}
	if args.DateTime == "" {
		return args, capability.Failf("Error: Falta la fecha y hora para agendar la cita.")
	}
	return args, nil
}

// Execute updates the lead with the collected contact data and creates a
// pending Agenda entry. No availability or double-booking check is made.
func (s *Scheduler) Execute(ctx context.Context, taskExecutionID string, args ScheduleArgs) (*capability.Outcome, error) {
	st := s.deps.Store
	fail := func(reason, note string, err error) (*capability.Outcome, error) {
		capability.MarkFailed(ctx, st, taskExecutionID, capability.NoteError, note)
		return nil, &capability.Failure{Reason: reason, Note: note, Err: err}
	}

	if args.DateTime == "" || args.LeadID == "" {
		return fail("Faltan datos necesarios para agendar la cita (fecha/hora, lead).",
			"Faltan datos necesarios (fecha/hora, lead).", nil)
	}

	when, err := ParseDateTime(args.DateTime, s.deps.loc())
	if err != nil {
		log.Warn().Str("task_execution", taskExecutionID).Str("fecha_hora", args.DateTime).Msg("Unparseable appointment date")
		return fail("El formato de la fecha/hora proporcionada no es válido.", "Formato de fecha/hora inválido.", err)
	}

	lead, err := st.GetLead(ctx, args.LeadID)
	if err != nil {
		msg := fmt.Sprintf("Lead con ID %s no encontrado.", args.LeadID)
		if !store.IsNotFound(err) {
			msg = "Error interno al agendar la cita."
		}
		return fail(msg, msg, err)
	}

	if args.ContactName != "" && args.ContactName != lead.Name {
		lead.Name = args.ContactName
	}
	if args.ContactEmail != "" && args.ContactEmail != lead.Email {
		lead.Email = args.ContactEmail
	}
	if args.ContactPhone != "" && args.ContactPhone != lead.Phone {
		lead.Phone = args.ContactPhone
	}
	if lead.JSONParams == nil {
		lead.JSONParams = make(map[string]any, len(args.Extra))
	}
	for k, v := range args.Extra {
		lead.JSONParams[k] = v
	}
	if err := st.UpdateLead(ctx, lead); err != nil {
		return fail("Error interno al agendar la cita.", err.Error(), err)
	}

	contact := firstNonEmpty(args.ContactEmail, args.ContactPhone, "N/A")
	now := s.deps.now().UTC()
	entry := &models.Agenda{
		ID:          uuid.NewString(),
		LeadID:      lead.ID,
		CRMID:       lead.CRMID,
		AgentID:     s.deps.Assignee,
		Subject:     fmt.Sprintf("Cita: %s con %s", firstNonEmpty(args.Topic, "Seguimiento"), lead.Name),
		Description: fmt.Sprintf("Agendada por asistente virtual. Contacto: %s.", contact),
		Date:        when,
		Type:        models.AgendaInPerson,
		Status:      models.AgendaPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := st.CreateAgenda(ctx, entry); err != nil {
		return fail("Error interno al agendar la cita.", err.Error(), err)
	}

	capability.MarkCompleted(ctx, st, taskExecutionID, map[string]any{
		"resultado": map[string]any{"citaId": entry.ID},
	})

	log.Info().Str("task_execution", taskExecutionID).Str("lead", lead.ID).Str("agenda", entry.ID).
		Time("date", when).Msg("Appointment scheduled")

	local := when.In(s.deps.loc())
	return &capability.Outcome{Message: fmt.Sprintf("¡Listo %s! Tu cita ha sido agendada para el %s a las %s.",
		lead.Name, FormatDate(local), local.Format("15:04"))}, nil
}

// Layouts accepted for fecha_hora, tried in order. Layouts without a zone
// are read in the configured location.
// Layouts carrying their own zone. Fractional seconds are accepted after
// the seconds field even where the layout omits them.
var zonedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
}

// Layouts read in the configured location. A bare date is midnight.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDateTime parses an ISO-like appointment date.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date/time %q", s)
}

// FormatDate renders t as "lunes 10 de marzo de 2025".
func FormatDate(t time.Time) string {
	return monday.Format(t, "Monday 2 de January de 2006", monday.LocaleEsES)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
