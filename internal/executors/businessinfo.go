package executors

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/israelwong/promediamx/internal/capability"
	"github.com/israelwong/promediamx/internal/textnorm"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/rs/zerolog/log"
)

// ArgTopic is the optional topic filter of brindarInformacionDelNegocio.
const ArgTopic = "tema"

type BusinessInfoArgs struct {
	BusinessID string
	Topic      string
}

// BusinessInfo answers general questions from the business profile and FAQ.
type BusinessInfo struct {
	deps Deps
}

func NewBusinessInfo(d Deps) *BusinessInfo { return &BusinessInfo{deps: d} }

func (b *BusinessInfo) Capability() capability.Capability {
	return capability.New(NameBusinessInfo, "Lo siento, hubo un problema al obtener la información", b.Bind, b.Execute)
}

func (b *BusinessInfo) Bind(ctx context.Context, call capability.Call) (BusinessInfoArgs, error) {
	businessID, err := resolveBusiness(ctx, b.deps.Store, call.AssistantID)
	if err != nil {
		return BusinessInfoArgs{}, err
	}
	return BusinessInfoArgs{BusinessID: businessID, Topic: call.Args.String(ArgTopic)}, nil
}

func (b *BusinessInfo) Execute(ctx context.Context, taskExecutionID string, args BusinessInfoArgs) (*capability.Outcome, error) {
	st := b.deps.Store
	biz, err := st.GetBusiness(ctx, args.BusinessID)
	if err != nil {
		note := fmt.Sprintf("Negocio %s no encontrado.", args.BusinessID)
		capability.MarkFailed(ctx, st, taskExecutionID, capability.NoteError, note)
		return nil, &capability.Failure{Reason: "Negocio no encontrado.", Note: note, Err: err}
	}

	answer, matched := answerTopic(biz, args.Topic)
	if !matched {
		answer = describe(biz)
	}

	capability.MarkCompleted(ctx, st, taskExecutionID, map[string]any{
		"resultado_info": map[string]any{"tema": args.Topic, "coincidencia": matched},
	})
	log.Info().Str("task_execution", taskExecutionID).Str("business", biz.ID).
		Str("topic", args.Topic).Bool("matched", matched).Msg("Business info answered")

	return &capability.Outcome{Message: answer}, nil
}

// answerTopic looks topic up in the FAQ first, then in the profile fields.
func answerTopic(biz *models.Business, topic string) (string, bool) {
	t := textnorm.Fold(topic)
	if t == "" {
		return "", false
	}

	// Sorted so overlapping topics resolve the same way every time.
	keys := make([]string, 0, len(biz.FAQ))
	for k := range biz.FAQ {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fk := textnorm.Fold(k)
		if fk != "" && (strings.Contains(t, fk) || strings.Contains(fk, t)) {
			return biz.FAQ[k], true
		}
	}

	switch {
	case containsAny(t, "direccion", "ubicacion", "donde") && biz.Address != "":
		return addressText(biz), true
	case containsAny(t, "politica", "reglamento") && biz.Policies != "":
		return biz.Policies, true
	case containsAny(t, "contacto", "telefono", "correo", "email") && (biz.Phone != "" || biz.Email != ""):
		return contactText(biz), true
	}
	return "", false
}

func describe(biz *models.Business) string {
	var sb strings.Builder
	sb.WriteString(biz.Name)
	if biz.Description != "" {
		sb.WriteString(": " + biz.Description)
	}
	if c := contactText(biz); c != "" {
		sb.WriteString("\n" + c)
	}
	return sb.String()
}

func contactText(biz *models.Business) string {
	var parts []string
	if biz.Phone != "" {
		parts = append(parts, "teléfono "+biz.Phone)
	}
	if biz.Email != "" {
		parts = append(parts, "correo "+biz.Email)
	}
	if len(parts) == 0 {
		return ""
	}
	return "Puedes contactarnos por " + strings.Join(parts, " o ") + "."
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
