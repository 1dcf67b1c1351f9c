package executors

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goodsign/monday"
	"github.com/israelwong/promediamx/internal/capability"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/rs/zerolog/log"
)

// Argument names of informarHorarioDeAtencion.
const (
	ArgSpecificDay = "diaEspecifico"
	ArgCheckOpen   = "verificarAbiertoAhora"
)

// exceptionHorizon is how far ahead non-working days are reported.
const exceptionHorizon = 3 // months

type HoursArgs struct {
	BusinessID   string
	SpecificDay  string
	CheckOpenNow bool
}

// Hours answers questions about opening hours.
type Hours struct {
	deps Deps
}

func NewHours(d Deps) *Hours { return &Hours{deps: d} }

func (h *Hours) Capability() capability.Capability {
	return capability.New(NameHours, "Lo siento, hubo un problema al obtener el horario", h.Bind, h.Execute)
}

func (h *Hours) Bind(ctx context.Context, call capability.Call) (HoursArgs, error) {
	businessID, err := resolveBusiness(ctx, h.deps.Store, call.AssistantID)
	if err != nil {
		return HoursArgs{}, err
	}
	args := HoursArgs{BusinessID: businessID, SpecificDay: call.Args.String(ArgSpecificDay)}
	if b := call.Args.Bool(ArgCheckOpen); b != nil {
		args.CheckOpenNow = *b
	}
	return args, nil
}

func (h *Hours) Execute(ctx context.Context, taskExecutionID string, args HoursArgs) (*capability.Outcome, error) {
	st := h.deps.Store
	fail := func(reason, note string, err error) (*capability.Outcome, error) {
		capability.MarkFailed(ctx, st, taskExecutionID, capability.NoteHours, note)
		return nil, &capability.Failure{Reason: reason, Note: note, Err: err}
	}

	biz, err := st.GetBusiness(ctx, args.BusinessID)
	if err != nil {
		return fail("Negocio no encontrado.", fmt.Sprintf("Negocio %s no encontrado.", args.BusinessID), err)
	}
	hours, err := st.ListBusinessHours(ctx, args.BusinessID)
	if err != nil {
		return fail("Error interno al obtener el horario.", err.Error(), err)
	}

	now := h.deps.now().In(h.deps.loc())
	// Exception dates are calendar days stored at UTC midnight.
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	// Yesterday is loaded so an overnight window can be cancelled.
	exceptions, err := st.ListHoursExceptions(ctx, args.BusinessID, today.AddDate(0, 0, -1), today.AddDate(0, exceptionHorizon, 0))
	if err != nil {
		return fail("Error interno al obtener el horario.", err.Error(), err)
	}
	var closedDays, closedYesterday []models.HoursException
	for _, ex := range exceptions {
		switch {
		case !ex.Closed:
		case ex.Date.Before(today):
			closedYesterday = append(closedYesterday, ex)
		default:
			closedDays = append(closedDays, ex)
		}
	}

	byDay := make(map[models.Weekday]string, len(hours))
	for _, bh := range hours {
		byDay[bh.Day] = bh.Open + " - " + bh.Close
	}

	var sb strings.Builder
	if day, ok := models.ParseWeekday(args.SpecificDay); args.SpecificDay != "" && ok {
		if window, open := byDay[day]; open {
			fmt.Fprintf(&sb, "El %s atendemos de %s.", day.DisplayName(), strings.Replace(window, " - ", " a ", 1))
		} else {
			fmt.Fprintf(&sb, "El %s no tenemos servicio.", day.DisplayName())
		}
	} else {
		sb.WriteString(weeklySchedule(biz.Name, byDay))
	}

	if len(closedDays) > 0 {
		if len(byDay) > 0 {
			sb.WriteString("\n\nAdicionalmente, ten en cuenta los siguientes días no laborables:\n")
		} else {
			sb.WriteString("\nSin embargo, ten en cuenta los siguientes días no laborables:\n")
		}
		for _, ex := range closedDays {
			sb.WriteString("- " + monday.Format(ex.Date.UTC(), "Monday 2 de January", monday.LocaleEsES))
			if ex.Description != "" {
				sb.WriteString(" (" + ex.Description + ")")
			}
			sb.WriteString("\n")
		}
	}

	if args.CheckOpenNow {
		if isOpen(now, byDay, append(closedYesterday, closedDays...)) {
			sb.WriteString("\n\nEn este momento estamos abiertos.")
		} else {
			sb.WriteString("\n\nEn este momento estamos cerrados.")
		}
	}

	capability.MarkCompleted(ctx, st, taskExecutionID, map[string]any{
		"resultado_horario": "Información de horario generada.",
	})
	log.Info().Str("task_execution", taskExecutionID).Str("business", biz.ID).Msg("Business hours reported")

	return &capability.Outcome{Message: strings.TrimSpace(sb.String())}, nil
}

// weeklySchedule groups consecutive days with identical hours:
// "Lunes a Viernes: 09:00 - 18:00".
func weeklySchedule(businessName string, byDay map[models.Weekday]string) string {
	if len(byDay) == 0 {
		return fmt.Sprintf("Actualmente no tenemos un horario de atención regular registrado para %s.", businessName)
	}

	var segments []string
	var start, end, window string
	flush := func() {
		if start == "" {
			return
		}
		label := start
		if start != end {
			label += " a " + end
		}
		segments = append(segments, label+": "+window)
		start, end, window = "", "", ""
	}

	for _, d := range models.Weekdays {
		w, ok := byDay[d]
		switch {
		case !ok:
			flush()
		case w == window:
			end = d.DisplayName()
		default:
			flush()
			start, end, window = d.DisplayName(), d.DisplayName(), w
		}
	}
	flush()

	if len(segments) == 0 {
		return fmt.Sprintf("Los horarios de atención para %s son:\nNo tenemos un horario regular configurado en este momento.", businessName)
	}
	return fmt.Sprintf("Los horarios de atención para %s son:\n%s", businessName, strings.Join(segments, "\n"))
}

// isOpen reports whether now falls inside a window. A window whose close is
// not after its open ("20:00 - 02:00") runs past midnight into the next day.
// A closed exception only cancels the window that starts on that date.
func isOpen(now time.Time, byDay map[models.Weekday]string, closed []models.HoursException) bool {
	cur := now.Format("15:04")
	if openAt, closeAt, ok := splitWindow(byDay[models.WeekdayOf(now.Weekday())]); ok && !closedOn(now, closed) {
		if closeAt <= openAt {
			if cur >= openAt {
				return true
			}
		} else if cur >= openAt && cur < closeAt {
			return true
		}
	}

	prev := now.AddDate(0, 0, -1)
	if openAt, closeAt, ok := splitWindow(byDay[models.WeekdayOf(prev.Weekday())]); ok && !closedOn(prev, closed) {
		if closeAt <= openAt && cur < closeAt {
			return true
		}
	}
	return false
}

func splitWindow(window string) (openAt, closeAt string, ok bool) {
	if window == "" {
		return "", "", false
	}
	return strings.Cut(window, " - ")
}

func closedOn(day time.Time, closed []models.HoursException) bool {
	for _, ex := range closed {
		d := ex.Date.UTC()
		if d.Year() == day.Year() && d.YearDay() == day.YearDay() {
			return true
		}
	}
	return false
}
