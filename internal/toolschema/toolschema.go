// Package toolschema turns capabilities into function declarations for the
// generative model.
package toolschema

import (
	"strings"

	"github.com/israelwong/promediamx/pkg/models"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

var typeMap = map[string]genai.Type{
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
}

// MapType maps an internal parameter type tag to the model schema type.
// Unknown or empty tags fall back to string.
func MapType(tag string) genai.Type {
	norm := strings.ToLower(strings.TrimSpace(tag))
	if t, ok := typeMap[norm]; ok {
		return t
	}
	log.Warn().Str("type", tag).Msg("Unmapped parameter type, using string")
	return genai.TypeString
}

// Build declares one function per capability that carries one. It returns
// nil when no capability is invocable.
func Build(caps []models.Capability) []*genai.Tool {
	var decls []*genai.FunctionDeclaration
	for _, c := range caps {
		if c.Function == nil || strings.TrimSpace(c.Function.Name) == "" {
			continue
		}
		decls = append(decls, declare(c))
	}
	if len(decls) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func declare(c models.Capability) *genai.FunctionDeclaration {
	props := make(map[string]*genai.Schema)

	add := func(p models.ParamSpec) {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return
		}
		if _, dup := props[name]; dup {
			return
		}
		s := &genai.Schema{Type: MapType(p.Type), Description: p.Description}
		if s.Type == genai.TypeArray {
			s.Items = &genai.Schema{Type: genai.TypeString}
		}
		props[name] = s
	}
	for _, p := range c.Function.Params {
		add(p)
	}
	for _, p := range c.CustomFields {
		add(p)
	}

	decl := &genai.FunctionDeclaration{
		Name:        c.Function.Name,
		Description: description(c),
	}
	if len(props) > 0 {
		// Required is left empty: the model asks for missing data in
		// conversation and executors validate what they need.
		decl.Parameters = &genai.Schema{
			Type:       genai.TypeObject,
			Properties: props,
		}
	}
	return decl
}

func description(c models.Capability) string {
	for _, d := range []string{c.ToolDescription, c.Function.Description} {
		if strings.TrimSpace(d) != "" {
			return d
		}
	}
	return "Ejecuta la acción " + c.Function.Name
}
