// Package models defines the core domain types for the promediamx control plane.
package models

import (
	"strings"
	"time"

	"github.com/israelwong/promediamx/internal/textnorm"
)

// ══════════════════════════════════════════════════════════════
// ── Task Executions ──────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// TaskStatus tracks the lifecycle of a task execution.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// TaskExecution records one attempt by the system to carry out an
// AI-decided action. Metadata holds the raw JSON call envelope until an
// executor or the dispatcher overwrites it with a result or failure note.
type TaskExecution struct {
	ID          string     `json:"id" db:"id"`
	TaskID      string     `json:"task_id,omitempty" db:"task_id"`
	AssistantID string     `json:"assistant_id,omitempty" db:"assistant_id"`
	Metadata    string     `json:"metadata" db:"metadata"`
	Status      TaskStatus `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Metadata keys of the call envelope persisted by the intake path.
const (
	MetaFunction     = "funcionLlamada"
	MetaArguments    = "argumentos"
	MetaConversation = "conversacionId"
	MetaLead         = "leadId"
	MetaAssistant    = "asistenteVirtualId"
)

// CallEnvelope is the typed view of TaskExecution.Metadata.
type CallEnvelope struct {
	Function       string         `json:"funcionLlamada"`
	Arguments      map[string]any `json:"argumentos"`
	ConversationID string         `json:"conversacionId"`
	LeadID         string         `json:"leadId"`
	AssistantID    string         `json:"asistenteVirtualId"`
}

// ══════════════════════════════════════════════════════════════
// ── Conversations ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

type ConversationStatus string

const (
	ConversationOpen   ConversationStatus = "open"
	ConversationAgent  ConversationStatus = "agent" // handed over to a human
	ConversationClosed ConversationStatus = "closed"
)

// Conversation is a thread of messages between a lead and an assistant or agent.
type Conversation struct {
	ID          string             `json:"id" db:"id"`
	LeadID      string             `json:"lead_id" db:"lead_id"`
	AssistantID string             `json:"assistant_id,omitempty" db:"assistant_id"`
	Status      ConversationStatus `json:"status" db:"status"`
	CreatedAt   time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" db:"updated_at"`
}

// Role is the author of an interaction.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleAgent     Role = "agent"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleAgent, RoleSystem:
		return true
	}
	return false
}

// Interaction is one chat message in a conversation. Immutable once created.
type Interaction struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	Role           Role      `json:"role" db:"role"`
	Message        string    `json:"message" db:"message"`
	MediaURL       string    `json:"media_url,omitempty" db:"media_url"`
	MediaType      string    `json:"media_type,omitempty" db:"media_type"`
	AgentID        string    `json:"agent_id,omitempty" db:"agent_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ══════════════════════════════════════════════════════════════
// ── CRM ──────────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// Lead is a prospective-customer contact record in a CRM.
type Lead struct {
	ID         string         `json:"id" db:"id"`
	CRMID      string         `json:"crm_id" db:"crm_id"`
	Name       string         `json:"name" db:"name"`
	Email      string         `json:"email,omitempty" db:"email"`
	Phone      string         `json:"phone,omitempty" db:"phone"`
	JSONParams map[string]any `json:"json_params,omitempty"` // schema-less custom fields
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" db:"updated_at"`
}

type AgendaStatus string

const (
	AgendaPending   AgendaStatus = "pendiente"
	AgendaCompleted AgendaStatus = "completada"
	AgendaCancelled AgendaStatus = "cancelada"
)

// Valid reports whether s is a known agenda status.
func (s AgendaStatus) Valid() bool {
	switch s {
	case AgendaPending, AgendaCompleted, AgendaCancelled:
		return true
	}
	return false
}

type AgendaType string

const (
	AgendaCall      AgendaType = "Llamada"
	AgendaMeeting   AgendaType = "Reunion"
	AgendaInPerson  AgendaType = "Reunion Presencial"
	AgendaEmail     AgendaType = "Email"
	AgendaTask      AgendaType = "Tarea"
	AgendaOtherType AgendaType = "Otro"
)

// Agenda is an appointment or task scheduled against a lead.
type Agenda struct {
	ID          string       `json:"id" db:"id"`
	LeadID      string       `json:"lead_id" db:"lead_id"`
	CRMID       string       `json:"crm_id,omitempty" db:"crm_id"`
	AgentID     string       `json:"agent_id,omitempty" db:"agent_id"`
	Subject     string       `json:"subject" db:"subject"`
	Description string       `json:"description,omitempty" db:"description"`
	Date        time.Time    `json:"date" db:"date"`
	Type        AgendaType   `json:"type" db:"type"`
	Status      AgendaStatus `json:"status" db:"status"`
	MeetingURL  string       `json:"meeting_url,omitempty" db:"meeting_url"`
	ReminderAt  *time.Time   `json:"reminder_at,omitempty" db:"reminder_at"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at" db:"updated_at"`
}

// ══════════════════════════════════════════════════════════════
// ── Businesses & Assistants ──────────────────────────────────
// ══════════════════════════════════════════════════════════════

// Business is the tenant-facing company an assistant speaks for.
type Business struct {
	ID          string            `json:"id" yaml:"id" db:"id"`
	Name        string            `json:"name" yaml:"name" db:"name"`
	Description string            `json:"description,omitempty" yaml:"description" db:"description"`
	Address     string            `json:"address,omitempty" yaml:"address" db:"address"`
	MapsURL     string            `json:"maps_url,omitempty" yaml:"maps_url" db:"maps_url"`
	Phone       string            `json:"phone,omitempty" yaml:"phone" db:"phone"`
	Email       string            `json:"email,omitempty" yaml:"email" db:"email"`
	Policies    string            `json:"policies,omitempty" yaml:"policies" db:"policies"`
	FAQ         map[string]string `json:"faq,omitempty" yaml:"faq"` // topic → answer
}

// Weekday uses the Spanish day names stored by the CRM.
type Weekday string

const (
	Monday    Weekday = "LUNES"
	Tuesday   Weekday = "MARTES"
	Wednesday Weekday = "MIERCOLES"
	Thursday  Weekday = "JUEVES"
	Friday    Weekday = "VIERNES"
	Saturday  Weekday = "SABADO"
	Sunday    Weekday = "DOMINGO"
)

// Weekdays lists the days in display order (Monday first).
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdayNames = map[Weekday]string{
	Monday:    "Lunes",
	Tuesday:   "Martes",
	Wednesday: "Miércoles",
	Thursday:  "Jueves",
	Friday:    "Viernes",
	Saturday:  "Sábado",
	Sunday:    "Domingo",
}

// DisplayName returns the capitalised Spanish name of the day.
func (d Weekday) DisplayName() string {
	if n, ok := weekdayNames[d]; ok {
		return n
	}
	return string(d)
}

// WeekdayOf maps a time.Weekday onto the CRM day enum.
func WeekdayOf(d time.Weekday) Weekday {
	if d == time.Sunday {
		return Sunday
	}
	return Weekdays[int(d)-1]
}

// ParseWeekday accepts enum values and display names, with or without accents.
func ParseWeekday(s string) (Weekday, bool) {
	norm := strings.ToUpper(textnorm.Fold(s))
	for _, d := range Weekdays {
		if string(d) == norm {
			return d, true
		}
	}
	return "", false
}

// BusinessHours is the regular opening window of a business on one day.
type BusinessHours struct {
	BusinessID string  `json:"business_id" yaml:"business_id" db:"business_id"`
	Day        Weekday `json:"day" yaml:"day" db:"day"`
	Open       string  `json:"open" yaml:"open" db:"open"`   // HH:MM
	Close      string  `json:"close" yaml:"close" db:"close"` // HH:MM
}

// HoursException marks a date with special hours or closed.
type HoursException struct {
	BusinessID  string    `json:"business_id" yaml:"business_id" db:"business_id"`
	Date        time.Time `json:"date" yaml:"date" db:"date"`
	Closed      bool      `json:"closed" yaml:"closed" db:"closed"`
	Description string    `json:"description,omitempty" yaml:"description" db:"description"`
}

// Assistant is a virtual assistant attached to a business and a channel.
type Assistant struct {
	ID           string   `json:"id" yaml:"id" db:"id"`
	BusinessID   string   `json:"business_id" yaml:"business_id" db:"business_id"`
	Name         string   `json:"name" yaml:"name" db:"name"`
	Channel      string   `json:"channel,omitempty" yaml:"channel" db:"channel"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities"` // subscribed capability IDs
}

// ══════════════════════════════════════════════════════════════
// ── Offers ───────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// OfferStatus is the catalogue state of an offer.
type OfferStatus string

const (
	OfferActive   OfferStatus = "activo"
	OfferInactive OfferStatus = "inactivo"
)

// OfferImage is a picture attached to an offer.
type OfferImage struct {
	URL         string `json:"url" yaml:"url"`
	AltText     string `json:"alt_text,omitempty" yaml:"alt_text"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Offer is a promotion a business publishes through its assistants.
type Offer struct {
	ID          string       `json:"id" yaml:"id" db:"id"`
	BusinessID  string       `json:"business_id" yaml:"business_id" db:"business_id"`
	Name        string       `json:"name" yaml:"name" db:"name"`
	Description string       `json:"description,omitempty" yaml:"description" db:"description"`
	Type        string       `json:"type,omitempty" yaml:"type" db:"type"` // e.g. DESCUENTO_PORCENTAJE
	Value       *float64     `json:"value,omitempty" yaml:"value" db:"value"`
	Code        string       `json:"code,omitempty" yaml:"code" db:"code"`
	Conditions  string       `json:"conditions,omitempty" yaml:"conditions" db:"conditions"`
	PaymentLink string       `json:"payment_link,omitempty" yaml:"payment_link" db:"payment_link"`
	Status      OfferStatus  `json:"status" yaml:"status" db:"status"`
	StartsAt    time.Time    `json:"starts_at" yaml:"starts_at" db:"starts_at"`
	EndsAt      time.Time    `json:"ends_at" yaml:"ends_at" db:"ends_at"`
	Images      []OfferImage `json:"images,omitempty" yaml:"images"`
	CreatedAt   time.Time    `json:"created_at" yaml:"created_at" db:"created_at"`
}

// ActiveAt reports whether the offer is published and t is within its
// validity range, both ends inclusive.
func (o *Offer) ActiveAt(t time.Time) bool {
	return o.Status == OfferActive && !t.Before(o.StartsAt) && !t.After(o.EndsAt)
}

// ══════════════════════════════════════════════════════════════
// ── Capabilities (AI tools) ──────────────────────────────────
// ══════════════════════════════════════════════════════════════

// ParamSpec describes one parameter the model can fill in.
type ParamSpec struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"` // string, number, integer, boolean, array
	Description string `json:"description,omitempty" yaml:"description"`
	Required    bool   `json:"required,omitempty" yaml:"required"`
}

// FunctionSpec is the invocable function behind a capability.
type FunctionSpec struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description"`
	Params      []ParamSpec `json:"params,omitempty" yaml:"params"`
}

// Capability is a task an assistant can perform, optionally backed by a function.
type Capability struct {
	ID              string        `json:"id" yaml:"id"`
	Name            string        `json:"name" yaml:"name"`
	ToolDescription string        `json:"tool_description,omitempty" yaml:"tool_description"`
	Instruction     string        `json:"instruction,omitempty" yaml:"instruction"`
	Function        *FunctionSpec `json:"function,omitempty" yaml:"function"`
	CustomFields    []ParamSpec   `json:"custom_fields,omitempty" yaml:"custom_fields"`
}
