package ai

import "strings"

// Schema is a named JSON Schema document describing a structured response.
type Schema struct {
	Name        string
	Description string
	Definition  map[string]any
}

// geminiSchema converts the JSON Schema definition into the OpenAPI subset Gemini accepts:
// upper-case type names and no additionalProperties.
func geminiSchema(def map[string]any) map[string]any {
	out := make(map[string]any, len(def))
	for k, v := range def {
		switch k {
		case "additionalProperties", "$schema":
			continue
		case "type":
			if s, ok := v.(string); ok {
				out[k] = strings.ToUpper(s)
				continue
			}
		case "properties":
			if props, ok := v.(map[string]any); ok {
				conv := make(map[string]any, len(props))
				for name, p := range props {
					if pm, ok := p.(map[string]any); ok {
						conv[name] = geminiSchema(pm)
					}
				}
				out[k] = conv
				continue
			}
		case "items":
			if im, ok := v.(map[string]any); ok {
				out[k] = geminiSchema(im)
				continue
			}
		}
		out[k] = v
	}
	return out
}
