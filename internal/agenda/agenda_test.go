package agenda_test

import (
	"context"
	"testing"
	"time"

	"github.com/israelwong/promediamx/internal/agenda"
	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*agenda.Service, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore("")
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.CreateLead(context.Background(), &models.Lead{ID: "l1", CRMID: "crm1", Name: "Ana"}))
	return agenda.NewService(s), s
}

func entry(lead string) *models.Agenda {
	return &models.Agenda{
		LeadID:  lead,
		Subject: "Cita: Inscripción con Ana",
		Date:    time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC),
	}
}

func TestCreate(t *testing.T) {
	svc, s := newService(t)
	ctx := context.Background()

	a := entry("l1")
	require.NoError(t, svc.Create(ctx, a))
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, models.AgendaPending, a.Status)
	assert.Equal(t, "crm1", a.CRMID)
	assert.Equal(t, models.AgendaOtherType, a.Type)

	got, err := s.GetAgenda(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Subject, got.Subject)
}

func TestCreate_OnePendingPerLead(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	require.NoError(t, svc.Create(ctx, entry("l1")))
	err := svc.Create(ctx, entry("l1"))
	assert.ErrorIs(t, err, agenda.ErrPendingExists)
}

func TestCreate_AllowedAfterCompletion(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	first := entry("l1")
	require.NoError(t, svc.Create(ctx, first))
	_, err := svc.SetStatus(ctx, first.ID, models.AgendaCompleted)
	require.NoError(t, err)

	assert.NoError(t, svc.Create(ctx, entry("l1")))
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	noSubject := entry("l1")
	noSubject.Subject = " "
	noDate := entry("l1")
	noDate.Date = time.Time{}

	assert.ErrorIs(t, svc.Create(ctx, entry("")), agenda.ErrInvalidEntry)
	assert.ErrorIs(t, svc.Create(ctx, noSubject), agenda.ErrInvalidEntry)
	assert.ErrorIs(t, svc.Create(ctx, noDate), agenda.ErrInvalidEntry)
	assert.ErrorIs(t, svc.Create(ctx, entry("ghost")), agenda.ErrLeadNotFound)
}

func TestSetStatus(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a := entry("l1")
	require.NoError(t, svc.Create(ctx, a))

	_, err := svc.SetStatus(ctx, a.ID, "archivada")
	assert.ErrorIs(t, err, agenda.ErrInvalidStatus)

	_, err = svc.SetStatus(ctx, "ghost", models.AgendaCancelled)
	assert.ErrorIs(t, err, agenda.ErrEntryNotFound)

	got, err := svc.SetStatus(ctx, a.ID, models.AgendaCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.AgendaCancelled, got.Status)

	// Reopening while another entry is pending is refused.
	require.NoError(t, svc.Create(ctx, entry("l1")))
	_, err = svc.SetStatus(ctx, a.ID, models.AgendaPending)
	assert.ErrorIs(t, err, agenda.ErrPendingExists)
}

func TestList(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a := entry("l1")
	require.NoError(t, svc.Create(ctx, a))
	_, err := svc.SetStatus(ctx, a.ID, models.AgendaCompleted)
	require.NoError(t, err)
	require.NoError(t, svc.Create(ctx, entry("l1")))

	all, err := svc.List(ctx, "l1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	pending, err := svc.List(ctx, "l1", models.AgendaPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = svc.List(ctx, "l1", "x")
	assert.ErrorIs(t, err, agenda.ErrInvalidStatus)
}
