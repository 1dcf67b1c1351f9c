package textnorm_test

import (
	"testing"

	"github.com/israelwong/promediamx/internal/textnorm"
	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := map[string]string{
		"  Miércoles ": "miercoles",
		"SÁBADO":       "sabado",
		"Ubicación":    "ubicacion",
		"Niño":         "nino",
		"plain":        "plain",
		"":             "",
	}
	for in, want := range tests {
		assert.Equal(t, want, textnorm.Fold(in), in)
	}
}
