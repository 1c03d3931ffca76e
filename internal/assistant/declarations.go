package assistant

import (
	"google.golang.org/genai"

	"github.com/sonroyaalmerol/napstablook/internal/tools"
)

// declarations exposes every assistant-facing op as a Gemini function.
func declarations() []*genai.Tool {
	var fns []*genai.FunctionDeclaration
	for _, s := range tools.Tools() {
		schema := &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
		for _, p := range s.Params {
			t := genai.TypeString
			if p.Type == tools.ParamNumber {
				t = genai.TypeNumber
			}
			schema.Properties[p.Name] = &genai.Schema{Type: t, Description: p.Description}
			if p.Required {
				schema.Required = append(schema.Required, p.Name)
			}
		}
		fns = append(fns, &genai.FunctionDeclaration{
			Name:        s.Tool,
			Description: s.Description,
			Parameters:  schema,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: fns}}
}
