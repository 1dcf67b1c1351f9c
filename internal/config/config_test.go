package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, "agent_crm_id_placeholder", cfg.Dispatch.DefaultAssignee)
	assert.Equal(t, 30*time.Second, cfg.Database.ConnectTimeout)
	assert.Empty(t, cfg.Auth.APIKeys)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PROMEDIA_PORT", "9090")
	t.Setenv("PROMEDIA_API_KEYS", "k1, ,k2")
	t.Setenv("DATABASE_CONNECT_TIMEOUT", "5s")
	t.Setenv("PROMEDIA_STORAGE", "postgres")

	cfg := Load()
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
	assert.Equal(t, 5*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("PROMEDIA_PORT", "not-a-number")
	t.Setenv("OTEL_ENABLED", "maybe")
	cfg := Load()
	assert.Equal(t, 8080, cfg.Port)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLocation_UnknownZone(t *testing.T) {
	d := DispatchConfig{TimeZone: "Mars/Olympus"}
	assert.Equal(t, time.UTC, d.Location())
}

const seedYAML = `
businesses:
  - id: b1
    name: Colegio Norte
    address: Av. Siempre Viva 742
    faq:
      colegiaturas: Consulta la tabla de colegiaturas en recepción.
    hours:
      - {day: lunes, open: "09:00", close: "18:00"}
      - {day: Miércoles, open: "09:00", close: "14:00"}
    exceptions:
      - {date: 2025-12-25T00:00:00Z, closed: true, description: Navidad}
    offers:
      - id: of-1
        name: Inscripción anticipada
        description: 20% de descuento en la inscripción.
        value: 20
        starts_at: 2025-01-01T00:00:00Z
        ends_at: 2025-12-31T23:59:59Z
        images:
          - {url: "https://img.example/inscripcion.jpg", alt_text: Inscripción}
capabilities:
  - id: cap-cita
    name: Agendar cita
    function:
      name: agendarCitaPresencial
      params:
        - {name: fecha_hora, type: string, required: true}
assistants:
  - id: as-1
    business_id: b1
    name: Sofía
    capabilities: [cap-cita]
leads:
  - id: l1
    name: Ana
    params: {grado: "3"}
conversations:
  - {id: c1, lead_id: l1, assistant_id: as-1}
`

func TestLoadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0644))

	s := store.NewMemoryStore("")
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, LoadSeed(ctx, path, s))

	b, err := s.GetBusiness(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Colegio Norte", b.Name)
	assert.Contains(t, b.FAQ, "colegiaturas")

	hours, err := s.ListBusinessHours(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, hours, 2)
	assert.Equal(t, models.Monday, hours[0].Day)
	assert.Equal(t, models.Wednesday, hours[1].Day)

	exs, err := s.ListHoursExceptions(ctx, "b1",
		time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, exs, 1)
	assert.True(t, exs[0].Closed)

	offers, err := s.ListOffers(ctx, "b1")
	require.NoError(t, err)
	require.Len(t, offers, 1)
	assert.Equal(t, "b1", offers[0].BusinessID)
	assert.Equal(t, models.OfferActive, offers[0].Status)
	require.NotNil(t, offers[0].Value)
	assert.Equal(t, 20.0, *offers[0].Value)
	require.Len(t, offers[0].Images, 1)
	assert.True(t, offers[0].ActiveAt(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))

	c, err := s.GetCapability(ctx, "cap-cita")
	require.NoError(t, err)
	require.NotNil(t, c.Function)
	assert.Equal(t, "agendarCitaPresencial", c.Function.Name)
	assert.True(t, c.Function.Params[0].Required)

	lead, err := s.GetLead(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "3", lead.JSONParams["grado"])

	conv, err := s.GetConversation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, models.ConversationOpen, conv.Status)
}

func TestParseSeed_UnknownDay(t *testing.T) {
	seed, err := ParseSeed([]byte(`businesses: [{id: b1, hours: [{day: funday, open: "1", close: "2"}]}]`))
	require.NoError(t, err)
	s := store.NewMemoryStore("")
	defer s.Close()
	assert.Error(t, seed.Apply(context.Background(), s))
}

func TestParseSeed_Malformed(t *testing.T) {
	_, err := ParseSeed([]byte("businesses: [unclosed"))
	assert.Error(t, err)
}
