package toolschema_test

import (
	"context"
	"testing"

	"github.com/israelwong/promediamx/internal/store"
	"github.com/israelwong/promediamx/internal/toolschema"
	"github.com/israelwong/promediamx/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func TestMapType(t *testing.T) {
	tests := []struct {
		tag  string
		want genai.Type
	}{
		{"string", genai.TypeString},
		{"NUMBER", genai.TypeNumber},
		{" integer ", genai.TypeInteger},
		{"Boolean", genai.TypeBoolean},
		{"array", genai.TypeArray},
		{"date", genai.TypeString},
		{"", genai.TypeString},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.want, toolschema.MapType(tt.tag))
		})
	}
}

func TestBuild_NoInvocableCapabilities(t *testing.T) {
	assert.Nil(t, toolschema.Build(nil))
	assert.Nil(t, toolschema.Build([]models.Capability{
		{ID: "c1", Name: "Solo instrucción", Instruction: "Saluda"},
		{ID: "c2", Function: &models.FunctionSpec{Name: "  "}},
	}))
}

func TestBuild_Declarations(t *testing.T) {
	caps := []models.Capability{
		{
			ID:              "cap-cita",
			ToolDescription: "Agenda una cita presencial",
			Function: &models.FunctionSpec{
				Name:        "agendarCitaPresencial",
				Description: "ignored when tool description is set",
				Params: []models.ParamSpec{
					{Name: "fecha_hora", Type: "string", Description: "Fecha ISO", Required: true},
					{Name: "asistentes", Type: "integer"},
				},
			},
			CustomFields: []models.ParamSpec{
				{Name: "fecha_hora", Type: "number"}, // already declared
				{Name: "grado", Type: "string"},
				{Name: "hermanos", Type: "array"},
			},
		},
		{ID: "cap-info", Instruction: "sin función"},
		{
			ID:       "cap-horario",
			Function: &models.FunctionSpec{Name: "informarHorarioDeAtencion", Description: "Informa el horario"},
		},
		{
			ID:       "cap-dir",
			Function: &models.FunctionSpec{Name: "darDireccionYUbicacion"},
		},
	}

	tools := toolschema.Build(caps)
	require.Len(t, tools, 1)
	decls := tools[0].FunctionDeclarations
	require.Len(t, decls, 3)

	cita := decls[0]
	assert.Equal(t, "agendarCitaPresencial", cita.Name)
	assert.Equal(t, "Agenda una cita presencial", cita.Description)
	require.NotNil(t, cita.Parameters)
	assert.Equal(t, genai.TypeObject, cita.Parameters.Type)
	assert.Len(t, cita.Parameters.Properties, 4)
	assert.Equal(t, genai.TypeString, cita.Parameters.Properties["fecha_hora"].Type)
	assert.Equal(t, genai.TypeInteger, cita.Parameters.Properties["asistentes"].Type)
	assert.Equal(t, genai.TypeArray, cita.Parameters.Properties["hermanos"].Type)
	assert.NotNil(t, cita.Parameters.Properties["hermanos"].Items)
	assert.Empty(t, cita.Parameters.Required)

	assert.Equal(t, "Informa el horario", decls[1].Description)
	assert.Nil(t, decls[1].Parameters)
	assert.Equal(t, "Ejecuta la acción darDireccionYUbicacion", decls[2].Description)
}

func TestForAssistant(t *testing.T) {
	s := store.NewMemoryStore("")
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.UpsertCapability(ctx, &models.Capability{
		ID: "cap-dir", Function: &models.FunctionSpec{Name: "darDireccionYUbicacion"},
	}))
	require.NoError(t, s.UpsertAssistant(ctx, &models.Assistant{
		ID: "a1", BusinessID: "b1", Capabilities: []string{"cap-dir", "cap-borrada"},
	}))

	tools, err := toolschema.ForAssistant(ctx, s, "a1")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	require.Len(t, tools[0].FunctionDeclarations, 1)
	assert.Equal(t, "darDireccionYUbicacion", tools[0].FunctionDeclarations[0].Name)

	_, err = toolschema.ForAssistant(ctx, s, "ghost")
	assert.True(t, store.IsNotFound(err))
}
