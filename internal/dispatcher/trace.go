package dispatcher

import (
	"github.com/israelwong/promediamx/internal/capability"
	"go.opentelemetry.io/otel/attribute"
)

func telemetryAttrs(call capability.Call) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("promedia.function", call.Function),
		attribute.String("promedia.conversation_id", call.ConversationID),
		attribute.String("promedia.lead_id", call.LeadID),
		attribute.String("promedia.assistant_id", call.AssistantID),
	}
}
